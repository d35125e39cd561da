package io

import (
	"path/filepath"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestCheckPages(t *testing.T) {
	rgb := gocv.NewMatWithSize(4, 5, gocv.MatTypeCV8UC3)
	defer rgb.Close()
	rgba := gocv.NewMatWithSize(4, 5, gocv.MatTypeCV8UC4)
	defer rgba.Close()
	rgb16 := gocv.NewMatWithSize(4, 5, gocv.MatTypeCV16UC3)
	defer rgb16.Close()
	wide := gocv.NewMatWithSize(4, 6, gocv.MatTypeCV8UC3)
	defer wide.Close()

	require.NoError(t, checkPages([]gocv.Mat{rgb, rgb}))
	require.ErrorContains(t, checkPages([]gocv.Mat{rgb, rgba}), "channels")
	require.ErrorContains(t, checkPages([]gocv.Mat{rgb, rgb16}), "page 2")
	require.ErrorContains(t, checkPages([]gocv.Mat{rgb, wide}), "6x4")
}

func TestLoadStackSinglePage(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	loader := NewImageLoader(logger)
	path := filepath.Join(t.TempDir(), "page.tif")

	m := gocv.NewMatWithSize(6, 8, gocv.MatTypeCV8U)
	defer m.Close()
	require.NoError(t, loader.SaveImage(m, path))

	pages, err := loader.LoadStack(path)
	require.NoError(t, err)
	defer closeAll(pages)
	require.Len(t, pages, 1)
	require.Equal(t, 8, pages[0].Cols())

	_, err = loader.LoadStack(filepath.Join(t.TempDir(), "page.txt"))
	require.Error(t, err)
}
