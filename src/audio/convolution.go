package audio

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/maddyblue/go-dsp/fft"
)

// ----- Convolution ----- //

// Convolver applies an impulse response to consecutive blocks of a mono signal.
type Convolver interface {
	LoadKernel(samples []float64) error
	Process(block []float64)
	Reset()
}

var errEmptyKernel = errors.New("empty kernel")

// convolutionKernel is an impulse response cut into blockSize partitions.
// Each partition is kept as the lower half (blockSize+1 bins) of its
// 2*blockSize point spectrum; the upper half is the conjugate mirror.
type convolutionKernel struct {
	length     int
	blockSize  int
	partitions [][]complex128
}

func newConvolutionKernel(samples []float64, blockSize int) (*convolutionKernel, error) {
	if len(samples) == 0 {
		return nil, errEmptyKernel
	}
	if blockSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBlockSize, blockSize)
	}
	for i, s := range samples {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return nil, fmt.Errorf("invalid kernel sample at %d: %v", i, s)
		}
	}
	numPartitions := (len(samples) + blockSize - 1) / blockSize
	partitions := make([][]complex128, numPartitions)
	padded := make([]float64, 2*blockSize)
	for p := range partitions {
		for i := range padded {
			padded[i] = 0
		}
		copy(padded, samples[p*blockSize:min((p+1)*blockSize, len(samples))])
		spectrum := fft.FFTReal(padded)
		partitions[p] = spectrum[: blockSize+1 : blockSize+1]
	}
	return &convolutionKernel{
		length:     len(samples),
		blockSize:  blockSize,
		partitions: partitions,
	}, nil
}

// fftConvolver is a uniformly partitioned overlap-add convolver with no
// latency. Input is collected into frames of blockSize samples; calls may
// cover any part of a frame.
//
//	output frame m = first half of IFFT(Y[m]) + second half of IFFT(Y[m-1])
//	Y[m] = X[m]*H[0] + sum over p >= 1 of X[m-p]*H[p]
//
// The sum over past frames is computed once per frame. Only X[m]*H[0] is
// recomputed on each call.
type fftConvolver struct {
	blockSize int
	kernel    *convolutionKernel
	frame     []float64 // 2*blockSize, upper half stays zero
	pos       int       // filled samples of the current frame
	history   [][]complex128
	head      int
	sum       []complex128 // past frames' contribution to the current frame
	spectrum  []complex128 // 2*blockSize
	tail      []float64    // overlap from the previous frame
}

var _ Convolver = (*fftConvolver)(nil)

func newFFTConvolver(blockSize int) *fftConvolver {
	return &fftConvolver{
		blockSize: blockSize,
		frame:     make([]float64, 2*blockSize),
		sum:       make([]complex128, blockSize+1),
		spectrum:  make([]complex128, 2*blockSize),
		tail:      make([]float64, blockSize),
	}
}

func (c *fftConvolver) LoadKernel(samples []float64) error {
	k, err := newConvolutionKernel(samples, c.blockSize)
	if err != nil {
		return err
	}
	c.install(k)
	return nil
}

// install swaps the kernel and clears the state. It only allocates when the
// partition count changes.
func (c *fftConvolver) install(k *convolutionKernel) {
	if k.blockSize != c.blockSize {
		return
	}
	c.kernel = k
	if len(c.history) != len(k.partitions) {
		c.history = make([][]complex128, len(k.partitions))
		for i := range c.history {
			c.history[i] = make([]complex128, c.blockSize+1)
		}
	}
	c.Reset()
}

func (c *fftConvolver) Reset() {
	for i := range c.frame {
		c.frame[i] = 0
	}
	for _, x := range c.history {
		for i := range x {
			x[i] = 0
		}
	}
	for i := range c.sum {
		c.sum[i] = 0
	}
	for i := range c.tail {
		c.tail[i] = 0
	}
	c.pos = 0
	c.head = 0
}

func (c *fftConvolver) Process(block []float64) {
	if c.kernel == nil {
		return
	}
	for len(block) > 0 {
		n := len(block)
		if n > c.blockSize-c.pos {
			n = c.blockSize - c.pos
		}
		c.processChunk(block[:n])
		block = block[n:]
	}
}

// processChunk handles samples that fit in the current frame.
func (c *fftConvolver) processChunk(block []float64) {
	n := len(block)
	size := 2 * c.blockSize
	bins := c.blockSize + 1
	copy(c.frame[c.pos:], block)
	x := fft.FFTReal(c.frame)
	h := c.kernel.partitions[0]
	for k := 0; k < bins; k++ {
		c.spectrum[k] = x[k]*h[k] + c.sum[k]
	}
	for k := bins; k < size; k++ {
		c.spectrum[k] = cmplx.Conj(c.spectrum[size-k])
	}
	y := fft.IFFT(c.spectrum)
	for i := 0; i < n; i++ {
		block[i] = real(y[c.pos+i]) + c.tail[c.pos+i]
	}
	c.pos += n
	if c.pos < c.blockSize {
		return
	}
	// frame complete
	for i := range c.tail {
		c.tail[i] = real(y[c.blockSize+i])
	}
	c.head = (c.head + 1) % len(c.history)
	copy(c.history[c.head], x[:bins])
	for i := 0; i < c.blockSize; i++ {
		c.frame[i] = 0
	}
	c.pos = 0
	c.accumulateHistory()
}

// accumulateHistory computes the contribution of completed frames to the
// next one.
func (c *fftConvolver) accumulateHistory() {
	for k := range c.sum {
		c.sum[k] = 0
	}
	numHistory := len(c.history)
	for p := 1; p < len(c.kernel.partitions); p++ {
		x := c.history[(c.head-(p-1)+numHistory)%numHistory]
		h := c.kernel.partitions[p]
		for k := range c.sum {
			c.sum[k] += x[k] * h[k]
		}
	}
}
