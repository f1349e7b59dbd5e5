// Package progressui renders build progress: a fixed-slot, cursor-repositioning
// live display on a tty, or one line per finished non-cached task otherwise.
// Grounded directly on progress_ui.cpp.
package progressui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bec-ca/mellow/internal/ui"
)

// TaskProgress tracks one task's lifecycle for display purposes. Handles
// are stable uuid.UUIDs rather than pointer identity, so a rebuilt graph
// between incremental runs never collides with a still-live handle.
type TaskProgress struct {
	id        uuid.UUID
	name      string
	startTime time.Time
	done      bool
}

// UI is the shared progress renderer for one build run.
type UI struct {
	mu sync.Mutex

	out   io.Writer
	isTTY bool

	allTasks      map[uuid.UUID]*TaskProgress
	runningSlots  []*TaskProgress
	shownLines    []string
	finishedTasks int
	cachedTasks   int
}

// New creates a UI writing to out. isTTY controls which rendering mode is
// used; callers typically pass ui.IsTTY.
func New(out io.Writer, isTTY bool) *UI {
	return &UI{
		out:      out,
		isTTY:    isTTY,
		allTasks: map[uuid.UUID]*TaskProgress{},
	}
}

// AddTask registers a new task under name, returning a handle for later
// TaskStarted/TaskDone calls.
func (u *UI) AddTask(name string) *TaskProgress {
	u.mu.Lock()
	defer u.mu.Unlock()
	t := &TaskProgress{id: uuid.New(), name: name}
	u.allTasks[t.id] = t
	return t
}

// TaskStarted marks t as running and redraws.
func (u *UI) TaskStarted(t *TaskProgress) {
	u.mu.Lock()
	defer u.mu.Unlock()
	t.startTime = time.Now()
	u.addRunningSlot(t)
	u.showRunningTasks()
}

// TaskDone marks t as finished (cached or actually run) and redraws; on a
// non-tty, it also emits a single summary line for the task, matching the
// original's behavior of only printing finished, non-cached tasks inline.
func (u *UI) TaskDone(t *TaskProgress, cached bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	took := time.Since(t.startTime)
	if cached {
		u.cachedTasks++
	}
	u.finishedTasks++
	if !u.isTTY && !cached {
		fmt.Fprintf(u.out, "%s %s (%d/%d)\n", t.name, took.Round(time.Millisecond), u.finishedTasks, len(u.allTasks))
	}
	t.done = true
	u.removeRunningSlot(t)
	u.showRunningTasks()
}

func (u *UI) addRunningSlot(t *TaskProgress) {
	for i, slot := range u.runningSlots {
		if slot == nil {
			u.runningSlots[i] = t
			return
		}
	}
	u.runningSlots = append(u.runningSlots, t)
}

func (u *UI) removeRunningSlot(t *TaskProgress) {
	for i, slot := range u.runningSlots {
		if slot == t {
			u.runningSlots[i] = nil
			return
		}
	}
}

func (u *UI) showRunningTasks() {
	if !u.isTTY {
		return
	}
	var willShow []string
	for _, slot := range u.runningSlots {
		line := "*"
		if slot != nil {
			line += " " + ui.Bold(slot.name)
		}
		willShow = append(willShow, line)
	}
	willShow = append(willShow, ui.Dim(fmt.Sprintf(
		"Todo:%d/%d Ran:%d Cached:%d",
		len(u.allTasks)-u.finishedTasks, len(u.allTasks),
		u.finishedTasks-u.cachedTasks, u.cachedTasks)))

	var buf strings.Builder
	fmt.Fprintf(&buf, "\x1b[%dA\x1b[?25l", len(u.shownLines))
	n := len(willShow)
	if len(u.shownLines) > n {
		n = len(u.shownLines)
	}
	for i := 0; i < n; i++ {
		var line string
		if i < len(willShow) {
			line = willShow[i]
		}
		if i < len(u.shownLines) && len(u.shownLines[i]) > len(line) {
			line += strings.Repeat(" ", len(u.shownLines[i])-len(line))
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	buf.WriteString("\x1b[?25h")

	io.WriteString(u.out, buf.String())
	u.shownLines = willShow
}

// Finish prints the final Ran/Cached/Total summary line on a non-tty, where
// showRunningTasks never draws anything during the run.
func (u *UI) Finish() {
	if u.isTTY {
		return
	}
	fmt.Fprintf(u.out, "Ran:%d Cached:%d Total:%d\n",
		u.finishedTasks-u.cachedTasks, u.cachedTasks, len(u.allTasks))
}
