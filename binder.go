package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

// RolePair associates one emoji token with the role it grants. The token is
// stored in the reaction API's shape: "name:id" for custom emoji, the literal
// character for standard ones.
type RolePair struct {
	Emoji  string `json:"emoji"`
	RoleID string `json:"role_id"`
}

// ReactionRoleBinding ties a posted message to its emoji→role pairs. Pairs
// keep their input order; matching scans in that order and the first hit wins.
type ReactionRoleBinding struct {
	MessageID string     `json:"message_id"`
	ChannelID string     `json:"channel_id"`
	Title     string     `json:"title"`
	Pairs     []RolePair `json:"pairs"`
	CreatedAt time.Time  `json:"created_at"`
}

// Match returns the role for an incoming reaction's emoji token, if any.
func (b ReactionRoleBinding) Match(emoji string) (string, bool) {
	for _, pair := range b.Pairs {
		if pair.Emoji == emoji {
			return pair.RoleID, true
		}
	}
	return "", false
}

// PairFormatError reports the first pair line that failed to parse. The whole
// binding is abandoned when one is returned.
type PairFormatError struct {
	Line   string
	Reason string
}

func (e *PairFormatError) Error() string {
	return fmt.Sprintf("bad pair %q: %s", e.Line, e.Reason)
}

var (
	rolePattern        = regexp.MustCompile(`^<@&([0-9]+)>$`)
	customEmojiPattern = regexp.MustCompile(`^<(a?):([A-Za-z0-9_~]+):([0-9]+)>$`)
	customTokenPattern = regexp.MustCompile(`^[A-Za-z0-9_~]+:[0-9]+$`)
)

// ParsePairs reads one "emoji @role" pair per line. Custom emoji references
// are normalized to the name:id form reaction events carry; anything else
// without markup is taken as a literal emoji token.
func ParsePairs(input string) ([]RolePair, error) {
	var pairs []RolePair
	for _, line := range strings.Split(input, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, &PairFormatError{Line: line, Reason: "expected an emoji followed by a role mention"}
		}
		emoji, role := fields[0], fields[1]

		m := rolePattern.FindStringSubmatch(role)
		if m == nil {
			return nil, &PairFormatError{Line: line, Reason: fmt.Sprintf("%q is not a role mention", role)}
		}
		roleID := m[1]

		if c := customEmojiPattern.FindStringSubmatch(emoji); c != nil {
			emoji = c[2] + ":" + c[3]
		} else if strings.ContainsAny(emoji, "<>@&") {
			return nil, &PairFormatError{Line: line, Reason: fmt.Sprintf("%q is not an emoji", emoji)}
		}
		pairs = append(pairs, RolePair{Emoji: emoji, RoleID: roleID})
	}
	if len(pairs) == 0 {
		return nil, &PairFormatError{Line: "", Reason: "at least one emoji/role pair is required"}
	}
	return pairs, nil
}

// BindingStore keeps bindings in a JSON document keyed by message id. Every
// lookup re-reads the file, so edits from outside the process take effect on
// the very next event.
type BindingStore struct {
	path   string
	mut    sync.Mutex
	logger *slog.Logger
}

func NewBindingStore(logger *slog.Logger, path string) *BindingStore {
	return &BindingStore{path: path, logger: logger}
}

// Get returns the binding for a message, or nil when there is none.
func (s *BindingStore) Get(messageID string) (*ReactionRoleBinding, error) {
	s.mut.Lock()
	defer s.mut.Unlock()
	bindings, err := s.load()
	if err != nil {
		return nil, err
	}
	binding, ok := bindings[messageID]
	if !ok {
		return nil, nil
	}
	return binding, nil
}

// Put saves a binding under its message id.
func (s *BindingStore) Put(binding ReactionRoleBinding) error {
	s.mut.Lock()
	defer s.mut.Unlock()
	bindings, err := s.load()
	if err != nil {
		return err
	}
	bindings[binding.MessageID] = &binding
	return s.save(bindings)
}

func (s *BindingStore) load() (map[string]*ReactionRoleBinding, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]*ReactionRoleBinding{}, nil
		}
		return nil, &PersistenceError{Op: "read bindings", Err: err}
	}
	var bindings map[string]*ReactionRoleBinding
	if err := json.Unmarshal(data, &bindings); err != nil {
		return nil, &PersistenceError{Op: "decode bindings", Err: err}
	}
	if bindings == nil {
		bindings = map[string]*ReactionRoleBinding{}
	}
	return bindings, nil
}

func (s *BindingStore) save(bindings map[string]*ReactionRoleBinding) error {
	data, err := json.MarshalIndent(bindings, "", "  ")
	if err != nil {
		return &PersistenceError{Op: "encode bindings", Err: err}
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return &PersistenceError{Op: "write bindings", Err: err}
	}
	s.logger.Info("saved reaction role bindings", slog.String("path", s.path), slog.Int("count", len(bindings)))
	return nil
}

// writeFileAtomic writes via a temp file and rename so a failed write never
// leaves a half-written document behind.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
