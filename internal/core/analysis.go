package core

// Triplet is a cell mask with the spot archives of both channels.
type Triplet struct {
	ID   string
	Mask ImageFile
	C1   ImageFile
	C2   ImageFile
}

// AnalysisRow holds the spot counts of one triplet.
type AnalysisRow struct {
	Filename      string
	Group         string
	CellCount     int
	Ch1Spots      int
	Ch2Total      int
	Ch2Inside     int
	Ch2DeepInside int
	Ch2Outside    int
}

func (r AnalysisRow) perCell(n int) float64 {
	if r.CellCount <= 0 {
		return 0
	}
	return float64(n) / float64(r.CellCount)
}

func (r AnalysisRow) Ch1PerCell() float64           { return r.perCell(r.Ch1Spots) }
func (r AnalysisRow) Ch2TotalPerCell() float64      { return r.perCell(r.Ch2Total) }
func (r AnalysisRow) Ch2InsidePerCell() float64     { return r.perCell(r.Ch2Inside) }
func (r AnalysisRow) Ch2DeepInsidePerCell() float64 { return r.perCell(r.Ch2DeepInside) }
