package daq

// SampleMatrix is a rows x cols grid of samples in one flat slice.
// Row i occupies Data()[i*cols:(i+1)*cols].
type SampleMatrix struct {
	rows, cols int
	data       []float32
}

// NewSampleMatrix allocates a matrix.
func NewSampleMatrix(rows, cols int) *SampleMatrix {
	return &SampleMatrix{rows: rows, cols: cols, data: make([]float32, rows*cols)}
}

// Rows returns the number of rows.
func (m *SampleMatrix) Rows() int { return m.rows }

// Cols returns the number of columns.
func (m *SampleMatrix) Cols() int { return m.cols }

// Data returns the underlying slice.
func (m *SampleMatrix) Data() []float32 { return m.data }

// Row returns the slice of row i, sharing the storage.
func (m *SampleMatrix) Row(i int) []float32 {
	return m.data[i*m.cols : (i+1)*m.cols]
}

// At returns the sample at (i, j).
func (m *SampleMatrix) At(i, j int) float32 {
	return m.data[m.index(i, j)]
}

// Set updates the sample at (i, j).
func (m *SampleMatrix) Set(i, j int, v float32) {
	m.data[m.index(i, j)] = v
}

// Clear zeroes all samples without reallocating.
func (m *SampleMatrix) Clear() {
	for i := range m.data {
		m.data[i] = 0
	}
}

func (m *SampleMatrix) index(i, j int) int {
	if i < 0 || i >= m.rows || j < 0 || j >= m.cols {
		panic("sample matrix index out of range")
	}
	return i*m.cols + j
}
