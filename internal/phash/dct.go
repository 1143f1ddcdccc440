package phash

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

// lumaGrid downscales img to a size x size grayscale grid and returns
// the luminance values. The fixed grid is what makes fingerprints
// independent of the source resolution.
func lumaGrid(img image.Image, size int) [][]float64 {
	scaled := image.NewGray(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, img.Bounds(), draw.Src, nil)

	grid := make([][]float64, size)
	for y := 0; y < size; y++ {
		row := make([]float64, size)
		for x := 0; x < size; x++ {
			row[x] = float64(scaled.GrayAt(x, y).Y)
		}
		grid[y] = row
	}
	return grid
}

// dct2d applies a 2D type-II discrete cosine transform to a square
// grid. The grid is small and fixed, so the direct O(n^3) row/column
// passes are plenty fast.
func dct2d(grid [][]float64) [][]float64 {
	n := len(grid)
	cosines := cosTable(n)

	// Rows, then columns.
	tmp := make([][]float64, n)
	for y := 0; y < n; y++ {
		tmp[y] = dct1d(grid[y], cosines)
	}
	out := make([][]float64, n)
	for y := range out {
		out[y] = make([]float64, n)
	}
	column := make([]float64, n)
	for x := 0; x < n; x++ {
		for y := 0; y < n; y++ {
			column[y] = tmp[y][x]
		}
		transformed := dct1d(column, cosines)
		for y := 0; y < n; y++ {
			out[y][x] = transformed[y]
		}
	}
	return out
}

func dct1d(in []float64, cosines [][]float64) []float64 {
	n := len(in)
	out := make([]float64, n)
	for u := 0; u < n; u++ {
		var sum float64
		for x := 0; x < n; x++ {
			sum += in[x] * cosines[u][x]
		}
		out[u] = sum
	}
	return out
}

// cosTable precomputes cos((2x+1)*u*pi/2n) for the transform.
func cosTable(n int) [][]float64 {
	table := make([][]float64, n)
	for u := 0; u < n; u++ {
		row := make([]float64, n)
		for x := 0; x < n; x++ {
			row[x] = math.Cos(float64(2*x+1) * float64(u) * math.Pi / float64(2*n))
		}
		table[u] = row
	}
	return table
}
