package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Thresholds below which a screenshot is unlikely to read well
const (
	BlurThreshold = 100.0
	DarkThreshold = 50.0
	MinDimension  = 200
)

// Report summarizes an inspected image
type Report struct {
	Format        string
	Width         int
	Height        int
	Brightness    float64
	BlurScore     float64
	AvgSaturation float64
}

// Blurry reports whether the Laplacian variance is below the blur threshold
func (r Report) Blurry() bool { return r.BlurScore < BlurThreshold }

// Dark reports whether mean brightness is below the dark threshold
func (r Report) Dark() bool { return r.Brightness < DarkThreshold }

// TooSmall reports whether either side is below the minimum dimension
func (r Report) TooSmall() bool { return r.Width < MinDimension || r.Height < MinDimension }

// Labels describes the image in the vocabulary used by prompt labels
func (r Report) Labels() []string {
	labels := []string{"Captura de tela", fmt.Sprintf("Formato %s", r.Format)}
	if r.Blurry() {
		labels = append(labels, "Imagem desfocada")
	}
	if r.Dark() {
		labels = append(labels, "Imagem escura")
	}
	if r.TooSmall() {
		labels = append(labels, "Baixa resolução")
	}
	if r.AvgSaturation > 0.5 {
		labels = append(labels, "Cores vivas")
	}
	return labels
}

// Inspect decodes data and computes its quality metrics
func Inspect(data []byte) (*Report, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	gray := toGray(img)
	bounds := img.Bounds()
	return &Report{
		Format:        format,
		Width:         bounds.Dx(),
		Height:        bounds.Dy(),
		Brightness:    Brightness(gray),
		BlurScore:     LaplacianVariance(gray),
		AvgSaturation: AverageSaturation(img),
	}, nil
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	bounds := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(gray, gray.Bounds(), img, bounds.Min, draw.Src)
	return gray
}

// LaplacianVariance scores sharpness; low values indicate blur
func LaplacianVariance(gray *image.Gray) float64 {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 3 || h < 3 {
		return 0
	}

	data := make([]float64, 0, (w-2)*(h-2))
	// kernel [0 1 0; 1 -4 1; 0 1 0]
	for y := b.Min.Y + 1; y < b.Max.Y-1; y++ {
		for x := b.Min.X + 1; x < b.Max.X-1; x++ {
			center := float64(gray.GrayAt(x, y).Y)
			top := float64(gray.GrayAt(x, y-1).Y)
			bottom := float64(gray.GrayAt(x, y+1).Y)
			left := float64(gray.GrayAt(x-1, y).Y)
			right := float64(gray.GrayAt(x+1, y).Y)
			data = append(data, -4*center+top+bottom+left+right)
		}
	}
	return stat.Variance(data, nil)
}

// Brightness is the mean gray level in [0, 255]
func Brightness(gray *image.Gray) float64 {
	b := gray.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return 0
	}
	values := make([]float64, 0, b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			values = append(values, float64(gray.GrayAt(x, y).Y))
		}
	}
	return stat.Mean(values, nil)
}

// AverageSaturation is the mean HSV saturation in [0, 1]
func AverageSaturation(img image.Image) float64 {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return 0
	}
	var total float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			total += saturation(float64(r)/65535.0, float64(g)/65535.0, float64(bl)/65535.0)
		}
	}
	return total / float64(b.Dx()*b.Dy())
}

func saturation(r, g, b float64) float64 {
	hi := math.Max(r, math.Max(g, b))
	lo := math.Min(r, math.Min(g, b))
	if hi == 0 {
		return 0
	}
	return (hi - lo) / hi
}
