package history

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/roach88/dredger/internal/cube"
)

const (
	// DefaultAuthorEmail is used for commit signatures when none is configured.
	DefaultAuthorEmail = "email@example.com"

	// DefaultDescription is the fixed second line of every commit message.
	DefaultDescription = "Reconstructed from the cube changelog"

	// rfc2822 is RFC 2822 date-time with an unpadded day of month.
	rfc2822 = "Mon, 2 Jan 2006 15:04:05 -0700"
)

var (
	// ErrRepositoryExists is returned when the destination already holds a
	// git repository. Mixing two unrelated histories is never attempted.
	ErrRepositoryExists = errors.New("destination already contains a repository")

	// ErrDestinationNotEmpty is returned when the destination is a
	// non-empty directory that is not a repository.
	ErrDestinationNotEmpty = errors.New("destination directory is not empty")
)

// CommitRef identifies one commit of a materialized history.
type CommitRef struct {
	// Seq is the commit's position in the chain, 0 for the root.
	Seq int

	Hash   plumbing.Hash
	Parent plumbing.Hash // zero for the root

	// Timestamp is the commit time, floored to whole seconds.
	Timestamp time.Time

	// Boards lists the boards whose files this commit rewrote.
	Boards []cube.BoardKind
}

// CommitRecorder is notified after every commit.
// A recorder error aborts the run.
type CommitRecorder interface {
	RecordCommit(ctx context.Context, ref CommitRef) error
}

// Result summarizes a materialized history.
type Result struct {
	Path    string
	Commits []CommitRef
	Head    plumbing.Hash
}

// Materializer writes snapshot sequences into fresh git repositories.
type Materializer struct {
	resolver    *cube.Resolver
	authorEmail string
	description string
	recorder    CommitRecorder
	logger      *slog.Logger
}

// Option configures a Materializer.
type Option func(*Materializer)

// WithAuthorEmail sets the email of commit signatures.
func WithAuthorEmail(email string) Option {
	return func(m *Materializer) {
		if email != "" {
			m.authorEmail = email
		}
	}
}

// WithDescription sets the fixed description line of commit messages.
func WithDescription(description string) Option {
	return func(m *Materializer) {
		if description != "" {
			m.description = description
		}
	}
}

// WithRecorder sets a recorder notified after each commit.
func WithRecorder(r CommitRecorder) Option {
	return func(m *Materializer) {
		m.recorder = r
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Materializer) {
		m.logger = l
	}
}

// New creates a Materializer rendering card names through resolver.
func New(resolver *cube.Resolver, opts ...Option) *Materializer {
	m := &Materializer{
		resolver:    resolver,
		authorEmail: DefaultAuthorEmail,
		description: DefaultDescription,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Materialize writes one commit per non-empty snapshot into a new repository
// at dest.
//
// snapshots must be oldest-first and the first one must carry both boards.
// Commits form a single linear chain: commit i's only parent is commit i-1.
// On error nothing is left at dest, and parent directories created for it
// are removed again.
func (m *Materializer) Materialize(ctx context.Context, dest string, meta Metadata, snapshots []cube.Snapshot) (*Result, error) {
	dest = filepath.Clean(dest)
	if err := CheckDestination(dest); err != nil {
		return nil, err
	}
	if len(snapshots) > 0 && (snapshots[0].Main == nil || snapshots[0].Maybe == nil) {
		return nil, fmt.Errorf("root snapshot at %s is missing a board", snapshots[0].Timestamp.UTC().Format(time.RFC3339))
	}

	parent := filepath.Dir(dest)
	createdTop, err := mkdirParents(parent)
	if err != nil {
		return nil, fmt.Errorf("create parent directory: %w", err)
	}
	staging, err := os.MkdirTemp(parent, "."+filepath.Base(dest)+".staging-*")
	if err != nil {
		removeCreated(parent, createdTop)
		return nil, fmt.Errorf("create staging directory: %w", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rmErr := os.RemoveAll(staging); rmErr != nil {
			m.logger.Error("failed to remove staging directory", "path", staging, "error", rmErr)
			return
		}
		removeCreated(parent, createdTop)
	}()

	result, err := m.build(ctx, staging, meta, snapshots)
	if err != nil {
		return nil, err
	}

	if err := promote(staging, dest); err != nil {
		return nil, err
	}
	committed = true
	result.Path = dest

	m.logger.Info("history materialized",
		"path", dest,
		"commits", len(result.Commits),
		"head", result.Head.String(),
	)
	return result, nil
}

// build initializes a repository in dir and commits every snapshot.
func (m *Materializer) build(ctx context.Context, dir string, meta Metadata, snapshots []cube.Snapshot) (*Result, error) {
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		return nil, fmt.Errorf("init repository: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("open worktree: %w", err)
	}

	if err := writeOverview(dir, meta); err != nil {
		return nil, err
	}

	result := &Result{}
	var prev plumbing.Hash
	for i, snap := range snapshots {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !snap.HasChanges() {
			m.logger.Warn("skipping snapshot without boards", "index", i, "timestamp", snap.Timestamp)
			continue
		}

		var boards []cube.BoardKind
		for _, kind := range []cube.BoardKind{cube.Mainboard, cube.Maybeboard} {
			board := snap.Board(kind)
			if board == nil {
				continue
			}
			if err := m.writeBoardFile(dir, kind, board); err != nil {
				return nil, err
			}
			boards = append(boards, kind)
		}

		ref, err := m.commit(wt, meta.Owner, snap.Timestamp, prev)
		if err != nil {
			return nil, fmt.Errorf("commit snapshot %d: %w", i, err)
		}
		ref.Seq = len(result.Commits)
		ref.Boards = boards

		if m.recorder != nil {
			if err := m.recorder.RecordCommit(ctx, ref); err != nil {
				return nil, fmt.Errorf("record commit %s: %w", ref.Hash, err)
			}
		}

		m.logger.Debug("committed snapshot",
			"seq", ref.Seq,
			"hash", ref.Hash.String(),
			"timestamp", ref.Timestamp,
			"boards", boards,
		)
		result.Commits = append(result.Commits, ref)
		prev = ref.Hash
	}
	result.Head = prev
	return result, nil
}

// commit stages every change in the worktree and commits it with parent as
// the only parent (none when parent is zero).
func (m *Materializer) commit(wt *git.Worktree, owner string, ts time.Time, parent plumbing.Hash) (CommitRef, error) {
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return CommitRef{}, fmt.Errorf("stage changes: %w", err)
	}

	when := ts.UTC().Truncate(time.Second)
	sig := &object.Signature{Name: owner, Email: m.authorEmail, When: when}

	var parents []plumbing.Hash
	if !parent.IsZero() {
		parents = []plumbing.Hash{parent}
	}

	hash, err := wt.Commit(CommitMessage(when, m.description), &git.CommitOptions{
		Author:            sig,
		Committer:         sig,
		Parents:           parents,
		AllowEmptyCommits: true,
	})
	if err != nil {
		return CommitRef{}, err
	}
	return CommitRef{Hash: hash, Parent: parent, Timestamp: when}, nil
}

func (m *Materializer) writeBoardFile(dir string, kind cube.BoardKind, board cube.Board) error {
	path := filepath.Join(dir, FileName(kind))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", FileName(kind), err)
	}
	w := bufio.NewWriter(f)
	if err := WriteBoard(w, board, m.resolver); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", FileName(kind), err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", FileName(kind), err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", FileName(kind), err)
	}
	return nil
}

// CommitMessage renders the message for a commit at ts: an RFC 2822 time
// line followed by the description.
func CommitMessage(ts time.Time, description string) string {
	return ts.UTC().Format(rfc2822) + "\n" + description
}

// CheckDestination verifies dest can receive a new history: it must not
// exist, or be an empty directory that is not a repository.
func CheckDestination(dest string) error {
	dest = filepath.Clean(dest)
	info, err := os.Stat(dest)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("inspect destination: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("destination %s is not a directory", dest)
	}

	if _, err := git.PlainOpen(dest); err == nil {
		return fmt.Errorf("%w: %s", ErrRepositoryExists, dest)
	}
	if _, err := os.Stat(filepath.Join(dest, git.GitDirName)); err == nil {
		return fmt.Errorf("%w: %s", ErrRepositoryExists, dest)
	}

	entries, err := os.ReadDir(dest)
	if err != nil {
		return fmt.Errorf("inspect destination: %w", err)
	}
	if len(entries) > 0 {
		return fmt.Errorf("%w: %s", ErrDestinationNotEmpty, dest)
	}
	return nil
}

// promote moves the finished staging repository to dest.
func promote(staging, dest string) error {
	existed := true
	if err := os.Remove(dest); errors.Is(err, os.ErrNotExist) {
		existed = false
	} else if err != nil {
		return fmt.Errorf("replace empty destination: %w", err)
	}
	if err := os.Rename(staging, dest); err != nil {
		if existed {
			_ = os.Mkdir(dest, 0o755)
		}
		return fmt.Errorf("move repository into place: %w", err)
	}
	return nil
}

// mkdirParents creates dir and any missing ancestors. It returns the
// outermost directory it created, or "" when dir already existed.
func mkdirParents(dir string) (string, error) {
	top := ""
	for d := dir; ; d = filepath.Dir(d) {
		if _, err := os.Stat(d); !errors.Is(err, os.ErrNotExist) {
			break
		}
		top = d
		if filepath.Dir(d) == d {
			break
		}
	}
	if top == "" {
		return "", nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		removeCreated(dir, top)
		return "", err
	}
	return top, nil
}

// removeCreated removes empty directories from dir upward, stopping after
// top or at the first directory that cannot be removed.
func removeCreated(dir, top string) {
	if top == "" {
		return
	}
	for d := dir; ; d = filepath.Dir(d) {
		if os.Remove(d) != nil || d == top || filepath.Dir(d) == d {
			return
		}
	}
}
