package main

import (
	"bytes"
	"image"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/thelolagemann/gbcore/internal/ppu"
	"github.com/thelolagemann/gbcore/pkg/emulator"
	"github.com/thelolagemann/gbcore/pkg/utils"
)

// recorder keeps the last frame and, optionally, all audio of a run.
type recorder struct {
	frames uint64
	pixels []byte
	audio  bytes.Buffer
}

func (r *recorder) record(withAudio bool) emulator.FrameSink {
	return func(f emulator.Frame) error {
		r.frames++
		r.pixels = append(r.pixels[:0], f.Pixels...)
		if withAudio {
			r.audio.Write(f.Audio)
		}
		return nil
	}
}

// frameImage converts RGB frame pixels into an image.
func frameImage(pixels []byte) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, ppu.ScreenWidth, ppu.ScreenHeight))
	for i, j := 0, 0; i+2 < len(pixels) && j < len(img.Pix); i, j = i+3, j+4 {
		img.Pix[j], img.Pix[j+1], img.Pix[j+2], img.Pix[j+3] = pixels[i], pixels[i+1], pixels[i+2], 0xFF
	}
	return img
}

func saveScreenshot(pixels []byte, filename string, scale int) error {
	if scale < 1 {
		scale = 1
	}
	return utils.SaveImage(frameImage(pixels), filename, scale)
}

// saveWAV writes unsigned 8-bit interleaved stereo samples.
func saveWAV(samples []byte, filename string, sampleRate int) (err error) {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 8,
	}

	// 8-bit PCM in WAV is unsigned, matching the sample format
	enc := wav.NewEncoder(f, sampleRate, 8, 2, 1)
	if err := enc.Write(buf); err != nil {
		return err
	}
	return enc.Close()
}
