package capture

import (
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	cardWidth  = 320
	cardHeight = 240

	toneSampleRate = 16000
	toneBitDepth   = 16
	toneSeconds    = 1
	toneHz         = 440
	wavPCM         = 1
)

var cardBars = []color.RGBA{
	{255, 255, 255, 255},
	{255, 255, 0, 255},
	{0, 255, 255, 255},
	{0, 255, 0, 255},
	{255, 0, 255, 255},
	{255, 0, 0, 255},
	{0, 0, 255, 255},
}

// writeTestCard encodes colour bars as a JPEG.
func writeTestCard(w io.Writer) error {
	img := image.NewRGBA(image.Rect(0, 0, cardWidth, cardHeight))
	barWidth := cardWidth / len(cardBars)
	for x := 0; x < cardWidth; x++ {
		bar := x / barWidth
		if bar >= len(cardBars) {
			bar = len(cardBars) - 1
		}
		for y := 0; y < cardHeight; y++ {
			img.SetRGBA(x, y, cardBars[bar])
		}
	}
	return jpeg.Encode(w, img, &jpeg.Options{Quality: 80})
}

// writeTone encodes a mono sine tone as 16-bit PCM WAV.
func writeTone(w io.WriteSeeker) error {
	n := toneSampleRate * toneSeconds
	data := make([]int, n)
	amp := float64(int(1)<<(toneBitDepth-1)-1) * 0.5
	for i := range data {
		data[i] = int(amp * math.Sin(2*math.Pi*toneHz*float64(i)/toneSampleRate))
	}

	enc := wav.NewEncoder(w, toneSampleRate, toneBitDepth, 1, wavPCM)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: toneSampleRate},
		Data:           data,
		SourceBitDepth: toneBitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return err
	}
	return enc.Close()
}
