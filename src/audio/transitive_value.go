package audio

// ----- Transitive Value ----- //

// transitiveValue moves linearly from its current value to a target
// over a fixed number of samples.
type transitiveValue struct {
	moving       bool
	duration     int // samples
	initialValue float64
	targetValue  float64
	value        float64
	pos          int
}

func (tv *transitiveValue) init(value float64) {
	tv.moving = false
	tv.duration = 0
	tv.initialValue = value
	tv.targetValue = value
	tv.value = value
	tv.pos = 0
}

func (tv *transitiveValue) linear(duration int, targetValue float64) {
	tv.moving = true
	tv.duration = duration
	tv.pos = 0
	tv.initialValue = tv.value
	tv.targetValue = targetValue
}

// step returns true on the sample the target is reached.
func (tv *transitiveValue) step() bool {
	if !tv.moving {
		return false
	}
	tv.pos++
	if tv.pos >= tv.duration {
		tv.end()
		return true
	}
	t := float64(tv.pos) / float64(tv.duration)
	tv.value = t*tv.targetValue + (1-t)*tv.initialValue
	return false
}

func (tv *transitiveValue) end() {
	tv.moving = false
	tv.value = tv.targetValue
	tv.pos = 0
}
