package main

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	audioeq "github.com/tphakala/go-audio-eq"
	"github.com/tphakala/go-audio-eq/internal/chain"
	"github.com/tphakala/go-audio-eq/internal/mathutil"
	"github.com/tphakala/go-audio-eq/internal/simdops"
)

const (
	// framesPerChunk is the number of frames decoded per iteration.
	framesPerChunk = 8192

	// wavFormatPCM is the WAVE_FORMAT_PCM format tag.
	wavFormatPCM = 1

	monoChannels   = 1
	stereoChannels = 2
)

// Full-scale values per PCM bit depth.
const (
	maxInt16 = 1 << 15
	maxInt24 = 1 << 23
	maxInt32 = 1 << 31
)

var errUnsupportedBitDepth = errors.New("unsupported bit depth")

// fullScale returns the magnitude of the most negative sample at bitDepth.
func fullScale(bitDepth int) (float64, error) {
	switch bitDepth {
	case 16:
		return maxInt16, nil
	case 24:
		return maxInt24, nil
	case 32:
		return maxInt32, nil
	default:
		return 0, fmt.Errorf("%w: %d", errUnsupportedBitDepth, bitDepth)
	}
}

// wavInput is an opened and validated WAV file.
type wavInput struct {
	file     *os.File
	decoder  *wav.Decoder
	format   *audio.Format
	rate     int
	channels int
	bitDepth int
}

func openWAVInput(path string) (*wavInput, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		_ = f.Close()
		return nil, fmt.Errorf("invalid WAV file: %s", path)
	}
	format := dec.Format()
	return &wavInput{
		file:     f,
		decoder:  dec,
		format:   format,
		rate:     format.SampleRate,
		channels: format.NumChannels,
		bitDepth: int(dec.BitDepth),
	}, nil
}

func (w *wavInput) Close() error {
	return w.file.Close()
}

// renderStats summarizes an offline render.
type renderStats struct {
	frames   int64
	clipped  int64
	rate     int
	channels int
	bitDepth int

	// Sums of squared samples before and after filtering, before clipping.
	inputEnergy  float64
	outputEnergy float64
}

// levelChangeDB returns the output level relative to the input in dB.
// Silent input reports 0.
func (s *renderStats) levelChangeDB() float64 {
	if s.inputEnergy == 0 {
		return 0
	}
	return mathutil.PowerToDB(s.outputEnergy / s.inputEnergy)
}

// renderWAV filters inputPath through p and writes outputPath with the same
// format. Samples beyond full scale after filtering are clipped.
func renderWAV[F simdops.Float](inputPath, outputPath string, p audioeq.Preset) (stats *renderStats, err error) {
	in, err := openWAVInput(inputPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = in.Close() }()

	scale, err := fullScale(in.bitDepth)
	if err != nil {
		return nil, err
	}
	c, err := newPresetChain[F](p, float64(in.rate), in.channels)
	if err != nil {
		return nil, err
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	enc := wav.NewEncoder(out, in.rate, in.bitDepth, in.channels, wavFormatPCM)
	defer func() {
		if closeErr := enc.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("failed to finalize WAV: %w", closeErr)
		}
		if closeErr := out.Close(); err == nil {
			err = closeErr
		}
	}()

	stats = &renderStats{rate: in.rate, channels: in.channels, bitDepth: in.bitDepth}
	readBuf := &audio.IntBuffer{Data: make([]int, framesPerChunk*in.channels), Format: in.format}
	writeBuf := &audio.IntBuffer{Data: make([]int, framesPerChunk*in.channels), Format: in.format, SourceBitDepth: in.bitDepth}
	planar := make([][]F, in.channels)
	for ch := range planar {
		planar[ch] = make([]F, framesPerChunk)
	}
	chunk := make([][]F, in.channels)
	ops := simdops.For[F]()

	for {
		readBuf.Data = readBuf.Data[:cap(readBuf.Data)]
		n, readErr := in.decoder.PCMBuffer(readBuf)
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return nil, fmt.Errorf("failed to read audio data: %w", readErr)
		}
		frames := n / in.channels
		if frames == 0 {
			break
		}

		for ch := range chunk {
			chunk[ch] = planar[ch][:frames]
		}
		deinterleaveInto(readBuf.Data[:frames*in.channels], chunk, 1/scale)
		for _, ch := range chunk {
			stats.inputEnergy += float64(ops.Energy(ch))
		}
		if err := c.Process(chunk); err != nil {
			return nil, err
		}
		for _, ch := range chunk {
			stats.outputEnergy += float64(ops.Energy(ch))
		}
		clipped := interleaveInto(chunk, writeBuf.Data, scale)

		writeBuf.Data = writeBuf.Data[:frames*in.channels]
		if err := enc.Write(writeBuf); err != nil {
			return nil, fmt.Errorf("failed to write audio data: %w", err)
		}
		writeBuf.Data = writeBuf.Data[:cap(writeBuf.Data)]

		stats.frames += int64(frames)
		stats.clipped += int64(clipped)
	}
	return stats, nil
}

// newPresetChain builds a processing chain holding p's bands and gain.
func newPresetChain[F simdops.Float](p audioeq.Preset, sampleRate float64, channels int) (*chain.Chain[F], error) {
	packed, err := audioeq.Coefficients(p, sampleRate, channels)
	if err != nil {
		return nil, err
	}
	c, err := chain.New[F](max(p.BandCount(), 1), channels)
	if err != nil {
		return nil, err
	}
	if err := c.Load(packed, p.Multiplier); err != nil {
		return nil, err
	}
	return c, nil
}

// deinterleaveInto converts interleaved PCM into the planar buffers, which
// must all have the same length.
func deinterleaveInto[F simdops.Float](data []int, planar [][]F, invScale float64) {
	numChannels := len(planar)
	frames := len(planar[0])

	if numChannels == monoChannels {
		buf := planar[0]
		for i := range frames {
			buf[i] = F(float64(data[i]) * invScale)
		}
		return
	}
	if numChannels == stereoChannels {
		buf0, buf1 := planar[0], planar[1]
		for i := range frames {
			idx := i * stereoChannels
			buf0[i] = F(float64(data[idx]) * invScale)
			buf1[i] = F(float64(data[idx+1]) * invScale)
		}
		return
	}
	for i := range frames {
		base := i * numChannels
		for ch := range numChannels {
			planar[ch][i] = F(float64(data[base+ch]) * invScale)
		}
	}
}

// interleaveInto converts planar samples to PCM in dst and returns the
// number of samples clipped to full scale. dst must hold every sample.
func interleaveInto[F simdops.Float](planar [][]F, dst []int, scale float64) int {
	numChannels := len(planar)
	clipped := 0
	for ch, samples := range planar {
		for i, v := range samples {
			s, clip := toPCM(float64(v), scale)
			if clip {
				clipped++
			}
			dst[i*numChannels+ch] = s
		}
	}
	return clipped
}

// toPCM scales v to an integer sample, clamping to [-scale, scale-1].
func toPCM(v, scale float64) (int, bool) {
	s := math.Round(v * scale)
	switch {
	case s > scale-1:
		return int(scale - 1), true
	case s < -scale:
		return int(-scale), true
	default:
		return int(s), false
	}
}
