package store

import (
	"bufio"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	logx "herald/pkg/logx"
)

// Subscribers is the durable set of broadcast recipients.
//
// Durable format: one decimal chat id per line, append-only. The in-memory
// set mirrors the file; on load, lines that do not parse as a non-negative
// integer are skipped. Ids are never removed.
type Subscribers struct {
	log  logx.Logger
	path string

	mu  sync.Mutex
	ids map[int64]struct{}
}

// OpenSubscribers loads the subscriber set from path.
//
// A missing file means an empty set. Any other read failure degrades to an
// empty set as well (logged, never fatal): a daemon with zero subscribers is
// preferable to one that refuses to start.
func OpenSubscribers(path string, log logx.Logger) *Subscribers {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Subscribers{log: log, path: path, ids: map[int64]struct{}{}}
	s.load()
	return s
}

func (s *Subscribers) load() {
	f, err := os.Open(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Error("subscriber store unreadable; starting with empty set", logx.String("path", s.path), logx.Err(err))
		}
		return
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		id, err := parseSubscriberLine(sc.Text())
		if err != nil {
			continue
		}
		s.ids[id] = struct{}{}
	}
	if err := sc.Err(); err != nil {
		s.log.Error("subscriber store read failed; keeping partial set", logx.String("path", s.path), logx.Err(err))
	}
	s.log.Info("subscribers loaded", logx.Int("count", len(s.ids)))
}

// Register adds id to the set. It reports true if the id was newly added.
//
// The durable append happens before the in-memory update: if the append
// fails, the id is NOT considered registered and the error is returned.
func (s *Subscribers) Register(id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ids[id]; ok {
		return false, nil
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return false, err
	}
	_, werr := f.WriteString(strconv.FormatInt(id, 10) + "\n")
	cerr := f.Close()
	if werr != nil {
		return false, werr
	}
	if cerr != nil {
		return false, cerr
	}

	s.ids[id] = struct{}{}
	return true, nil
}

// Contains reports membership without touching durable storage.
func (s *Subscribers) Contains(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

// IDs returns a sorted snapshot of the current set.
func (s *Subscribers) IDs() []int64 {
	s.mu.Lock()
	out := make([]int64, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *Subscribers) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

func parseSubscriberLine(line string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(line), 10, 64)
	if err != nil {
		return 0, err
	}
	if id < 0 {
		return 0, strconv.ErrRange
	}
	return id, nil
}
