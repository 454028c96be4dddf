// ABOUTME: Note engine package for interruptible tone playback
// ABOUTME: Provides Engine, the shutdown Signal and the cancelling PlaybackLock
// Package notes plays pitch/velocity/duration notes on a looped wavetable sink.
//
// A controller goroutine brackets a run of notes with Lock and Unlock while
// another goroutine may call Shutdown at any time. Shutdown cuts the current
// note short, and the next Unlock returns ErrPlaybackCancelled so the
// controller can unwind.
//
// Example:
//
//	engine, err := notes.Open(sink.Config{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Close()
//	engine.Initialize()
//
//	engine.Lock()
//	engine.PlayNote(69, 127, 250*time.Millisecond) // A4
//	if err := engine.Unlock(); errors.Is(err, notes.ErrPlaybackCancelled) {
//	    return
//	}
package notes
