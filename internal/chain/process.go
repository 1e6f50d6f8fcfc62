package chain

import "fmt"

// Process filters planar samples in place: every slot in order, then the
// output scale gain·volume (zero when muted).
func (c *Chain[F]) Process(buf [][]F) error {
	if len(buf) != c.channels {
		return fmt.Errorf("%w: chain has %d, buffer has %d", ErrChannelMismatch, c.channels, len(buf))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for ch, samples := range buf {
		for s := range c.sections {
			sec := c.sections[s][ch]
			if sec.IsNeutral() {
				continue
			}
			m := &c.mem[s][ch]
			for i, x := range samples {
				in := float64(x)
				y := sec.B0*in + m.z1
				m.z1 = sec.B1*in - sec.A1*y + m.z2
				m.z2 = sec.B2*in - sec.A2*y
				samples[i] = F(y)
			}
		}

		scale := c.gain * c.volume
		if c.muted {
			scale = 0
		}
		if scale != 1 {
			c.ops.Scale(samples, samples, F(scale))
		}
	}
	return nil
}
