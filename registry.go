package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
)

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotRegistered    = errors.New("not registered")
	ErrBadUserRef       = errors.New("not a user mention or id")
)

// ConflictKey says which identity an existing record collided on.
type ConflictKey int

const (
	ConflictDiscordAccount ConflictKey = iota
	ConflictOsuAccount
)

// AlreadyRegisteredError is returned when either identity of a registration
// request is already taken. The existing record is included so callers can
// word the refusal; the outcome is the same either way.
type AlreadyRegisteredError struct {
	Key      ConflictKey
	Existing MemberRecord
}

func (e *AlreadyRegisteredError) Error() string {
	if e.Key == ConflictDiscordAccount {
		return fmt.Sprintf("discord account %s is already registered", e.Existing.DiscordID)
	}
	return fmt.Sprintf("osu! account %s is already registered", e.Existing.OsuID)
}

// PersistenceError wraps a store failure. State is unchanged when one is
// returned; the cause is kept for logging, never surfaced to members.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("store %s failed: %v", e.Op, e.Err) }
func (e *PersistenceError) Unwrap() error { return e.Err }

// RoleLabelRule maps one Discord role to a registry label.
type RoleLabelRule struct {
	RoleID string
	Label  string
}

// RoleLabelTable is an ordered priority table: the first rule whose role the
// member holds wins, highest privilege first.
type RoleLabelTable struct {
	Rules   []RoleLabelRule
	Default string
}

func (t RoleLabelTable) Derive(memberRoles []string) string {
	for _, rule := range t.Rules {
		if slices.Contains(memberRoles, rule.RoleID) {
			return rule.Label
		}
	}
	return t.Default
}

var mentionPattern = regexp.MustCompile(`^<@!?([0-9]+)>$`)

// parseUserRef unwraps a Discord mention ("<@123>" or "<@!123>") to a bare
// id, and passes plain numeric ids through. Anything else is rejected.
func parseUserRef(ref string) (string, error) {
	if m := mentionPattern.FindStringSubmatch(ref); m != nil {
		return m[1], nil
	}
	if ref == "" {
		return "", fmt.Errorf("%w: empty", ErrBadUserRef)
	}
	for _, r := range ref {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: %q", ErrBadUserRef, ref)
		}
	}
	return ref, nil
}

type osuLookup interface {
	User(ctx context.Context, osuID string) (*OsuUser, error)
}

type registryMirror interface {
	Export(ctx context.Context, records []MemberRecord) error
}

// Registry owns the Discord↔osu! account mapping. All collaborators are
// injected; it holds no state of its own beyond the store handle.
type Registry struct {
	store  *memberStore
	osu    osuLookup
	mirror registryMirror
	logger *slog.Logger
}

func NewRegistry(store *memberStore, osu osuLookup, mirror registryMirror, logger *slog.Logger) *Registry {
	return &Registry{store: store, osu: osu, mirror: mirror, logger: logger}
}

type RegisterRequest struct {
	TargetID    string
	OsuID       string
	RequestedBy string
	Privileged  bool
	//the target's current guild role ids, used only to derive the label
	MemberRoles []string
	Labels      RoleLabelTable
}

type RegisterResult struct {
	Record  MemberRecord
	Profile *OsuUser
}

// Register links TargetID to OsuID. Validation happens before any write:
// privilege first, then the osu! account must exist, then neither identity
// may already be registered. The insert is a single row write; the store's
// unique indexes catch the race where two requests pass the duplicate check
// together, so the loser still comes back as AlreadyRegisteredError.
func (r *Registry) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if req.TargetID != req.RequestedBy && !req.Privileged {
		return nil, ErrPermissionDenied
	}

	profile, err := r.osu.User(ctx, req.OsuID)
	if err != nil {
		return nil, err
	}

	existing, err := r.store.findByEither(ctx, req.TargetID, req.OsuID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, r.conflict(req, *existing)
	}

	record := MemberRecord{
		DiscordID: req.TargetID,
		OsuID:     req.OsuID,
		Username:  profile.Username,
		RoleLabel: req.Labels.Derive(req.MemberRoles),
	}
	err = r.store.insert(ctx, &record)
	if errors.Is(err, errDuplicateKey) {
		// lost the race; re-read to classify the conflict
		if existing, lookupErr := r.store.findByEither(ctx, req.TargetID, req.OsuID); lookupErr == nil && existing != nil {
			return nil, r.conflict(req, *existing)
		}
		//the holder is unknown when the re-read fails; don't attribute the conflict
		return nil, &AlreadyRegisteredError{Key: ConflictOsuAccount, Existing: MemberRecord{OsuID: req.OsuID}}
	}
	if err != nil {
		return nil, err
	}

	r.export(ctx)
	return &RegisterResult{Record: record, Profile: profile}, nil
}

func (r *Registry) conflict(req RegisterRequest, existing MemberRecord) error {
	key := ConflictOsuAccount
	if existing.DiscordID == req.TargetID {
		key = ConflictDiscordAccount
	}
	return &AlreadyRegisteredError{Key: key, Existing: existing}
}

type UnregisterRequest struct {
	//mention, Discord id, or osu! id; empty means the requester themselves
	TargetRef   string
	RequestedBy string
	Privileged  bool
}

type UnregisterResult struct {
	Record MemberRecord
	//true when the requester removed their own registration
	Self bool
}

// Unregister removes the record matching TargetRef as either identity.
// Only the record's owner or a privileged requester may remove it, and the
// delete is a single row write.
func (r *Registry) Unregister(ctx context.Context, req UnregisterRequest) (*UnregisterResult, error) {
	ref := req.TargetRef
	if ref == "" {
		ref = req.RequestedBy
	}
	target, err := parseUserRef(ref)
	if err != nil {
		return nil, err
	}

	record, err := r.store.findByEither(ctx, target, target)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrNotRegistered
	}
	if record.DiscordID != req.RequestedBy && !req.Privileged {
		return nil, ErrPermissionDenied
	}

	if err := r.store.delete(ctx, record.DiscordID); err != nil {
		return nil, err
	}

	r.export(ctx)
	return &UnregisterResult{Record: *record, Self: record.DiscordID == req.RequestedBy}, nil
}

// export pushes a fresh snapshot to the mirror. Mirror failures are logged
// and dropped: the registration itself already succeeded.
func (r *Registry) export(ctx context.Context) {
	records, err := r.store.all(ctx)
	if err != nil {
		r.logger.Error("could not read registry for export", slog.String("err", err.Error()))
		return
	}
	if err := r.mirror.Export(ctx, records); err != nil {
		r.logger.Error("could not export registry mirror", slog.String("err", err.Error()))
	}
}
