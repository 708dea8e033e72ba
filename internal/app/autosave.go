package app

import (
	"log"
	"sync"
	"time"
)

// autosaver debounces chapter saves. Every edit pushes the pending timer
// for that chapter out by the configured delay, so a burst of edits
// produces a single save. At most one save per chapter runs at a time;
// a timer that fires mid-save queues one follow-up run instead of
// overlapping.
type autosaver struct {
	delay time.Duration
	save  func(chapterID int) error

	mu       sync.Mutex
	timers   map[int]*time.Timer
	inFlight map[int]bool
	rerun    map[int]bool
	wg       sync.WaitGroup
}

func newAutosaver(delay time.Duration, save func(chapterID int) error) *autosaver {
	return &autosaver{
		delay:    delay,
		save:     save,
		timers:   make(map[int]*time.Timer),
		inFlight: make(map[int]bool),
		rerun:    make(map[int]bool),
	}
}

// Schedule arms (or re-arms) the debounce timer for a chapter.
func (a *autosaver) Schedule(chapterID int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if timer, ok := a.timers[chapterID]; ok {
		timer.Stop()
	}
	a.timers[chapterID] = time.AfterFunc(a.delay, func() {
		a.fire(chapterID)
	})
}

func (a *autosaver) fire(chapterID int) {
	a.mu.Lock()
	delete(a.timers, chapterID)
	if a.inFlight[chapterID] {
		a.rerun[chapterID] = true
		a.mu.Unlock()
		return
	}
	a.inFlight[chapterID] = true
	a.wg.Add(1)
	a.mu.Unlock()

	go func() {
		defer a.wg.Done()
		a.run(chapterID)
	}()
}

func (a *autosaver) run(chapterID int) {
	if err := a.save(chapterID); err != nil {
		log.Printf("autosave: chapter %d save failed: %v", chapterID, err)
	}

	a.mu.Lock()
	a.inFlight[chapterID] = false
	again := a.rerun[chapterID]
	delete(a.rerun, chapterID)
	a.mu.Unlock()

	if again {
		a.Schedule(chapterID)
	}
}

// Flush cancels any pending timer for the chapter and saves synchronously.
// The save callback is expected to no-op when the chapter is clean, so
// flushing an idle chapter is cheap and always safe.
func (a *autosaver) Flush(chapterID int) error {
	a.mu.Lock()
	if timer, ok := a.timers[chapterID]; ok {
		timer.Stop()
		delete(a.timers, chapterID)
	}
	for a.inFlight[chapterID] {
		// A background save is mid-write; wait for it rather than
		// racing it, then save whatever it may have missed.
		a.mu.Unlock()
		a.wg.Wait()
		a.mu.Lock()
	}
	a.inFlight[chapterID] = true
	a.mu.Unlock()

	err := a.save(chapterID)

	a.mu.Lock()
	a.inFlight[chapterID] = false
	delete(a.rerun, chapterID)
	a.mu.Unlock()
	return err
}

// Cancel drops any pending save for a chapter without running it. Used
// when the chapter itself is being deleted.
func (a *autosaver) Cancel(chapterID int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if timer, ok := a.timers[chapterID]; ok {
		timer.Stop()
		delete(a.timers, chapterID)
	}
	delete(a.rerun, chapterID)
}
