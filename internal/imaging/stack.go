package imaging

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// Stack is an open image: one or more same-sized planes of the same
// channel count. It implements core.Image.
type Stack struct {
	title  string
	planes []gocv.Mat
	once   sync.Once
}

func newStack(title string, planes []gocv.Mat) *Stack {
	return &Stack{title: title, planes: planes}
}

func (s *Stack) Title() string { return s.title }

func (s *Stack) Width() int {
	if len(s.planes) == 0 {
		return 0
	}
	return s.planes[0].Cols()
}

func (s *Stack) Height() int {
	if len(s.planes) == 0 {
		return 0
	}
	return s.planes[0].Rows()
}

func (s *Stack) Channels() int {
	if len(s.planes) == 0 {
		return 0
	}
	return s.planes[0].Channels()
}

func (s *Stack) Planes() int { return len(s.planes) }

// Close releases every plane. Further calls are no-ops.
func (s *Stack) Close() error {
	s.once.Do(func() {
		for i := range s.planes {
			s.planes[i].Close()
		}
		s.planes = nil
	})
	return nil
}

func (s *Stack) validate() error {
	if len(s.planes) == 0 {
		return fmt.Errorf("image %q is closed or empty", s.title)
	}
	return nil
}

// plane returns the only plane of a single-plane image.
func (s *Stack) plane() (gocv.Mat, error) {
	if err := s.validate(); err != nil {
		return gocv.Mat{}, err
	}
	if len(s.planes) != 1 {
		return gocv.Mat{}, fmt.Errorf("image %q has %d planes, want 1", s.title, len(s.planes))
	}
	return s.planes[0], nil
}
