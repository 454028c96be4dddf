// ABOUTME: Sink package for driving a looped wavetable on an audio output
// ABOUTME: Provides the Sink interface plus malgo, oto, null and recording backends
// Package sink drives a single looped buffer on the default audio output.
//
// A sink exposes four capability calls over the buffer: playback rate,
// volume in centibels, and setting or reading the play cursor. Backends:
//   - Malgo: miniaudio device in its native mix format, callback driven (default)
//   - Oto: oto player pulling float32 PCM
//   - Null: no output, cursor advances with wall-clock time
//   - Recorder: records calls for tests
//
// Example:
//
//	dev, err := sink.Open(sink.Config{Backend: sink.BackendMalgo})
//	if err != nil {
//	    return err // *sink.DeviceInitError
//	}
//	defer dev.Close()
//	dev.SetFrequency(7040)
//	dev.SetVolume(0)
package sink
