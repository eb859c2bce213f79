package spikefeatures

import (
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/c360/mspikes/errors"
)

// Projection holds principal component scores.
type Projection struct {
	// Scores has one row per input row and one column per component.
	Scores *mat.Dense
	// Components has one column per principal axis.
	Components *mat.Dense
	// Fallback reports that the basis came from the transposed problem.
	Fallback bool
}

// Project centers rows and projects them onto their first k principal
// components. The basis is computed from at most limit evenly spaced rows;
// all rows are projected. k is reduced to the rank bound of the basis.
func Project(rows [][]float64, k, limit int, logger *slog.Logger) (*Projection, error) {
	if len(rows) == 0 || k <= 0 {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: nothing to project", errors.ErrInvalidData),
			"SpikeFeatures", "Project", "compute principal components")
	}
	if logger == nil {
		logger = slog.Default()
	}
	nrows, ncols := len(rows), len(rows[0])

	data := mat.NewDense(nrows, ncols, nil)
	for i, row := range rows {
		data.SetRow(i, row)
	}
	col := make([]float64, nrows)
	for j := 0; j < ncols; j++ {
		mat.Col(col, j, data)
		mu := stat.Mean(col, nil)
		for i := range col {
			data.Set(i, j, col[i]-mu)
		}
	}

	basis := basisRows(data, limit)
	br, _ := basis.Dims()
	k = min(k, br, ncols)

	var svd mat.SVD
	var v mat.Dense
	fallback := false
	if svd.Factorize(basis, mat.SVDThin) {
		svd.VTo(&v)
	} else {
		logger.Warn("SVD did not converge, decomposing the transpose", "rows", br, "cols", ncols)
		if !svd.Factorize(basis.T(), mat.SVDThin) {
			return nil, errors.WrapFatal(fmt.Errorf("%w: SVD did not converge", errors.ErrAlignment),
				"SpikeFeatures", "Project", "compute principal components")
		}
		svd.UTo(&v)
		fallback = true
	}

	axes := mat.DenseCopyOf(v.Slice(0, ncols, 0, k))
	var scores mat.Dense
	scores.Mul(data, axes)
	return &Projection{Scores: &scores, Components: axes, Fallback: fallback}, nil
}

// basisRows selects at most limit evenly spaced rows of data.
func basisRows(data *mat.Dense, limit int) *mat.Dense {
	nrows, ncols := data.Dims()
	if limit <= 0 || nrows <= limit {
		return data
	}
	out := mat.NewDense(limit, ncols, nil)
	for i := 0; i < limit; i++ {
		out.SetRow(i, data.RawRowView(i*nrows/limit))
	}
	return out
}
