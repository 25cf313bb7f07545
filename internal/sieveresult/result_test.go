package sieveresult

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/funvibe/sievecore/internal/sieveerr"
)

// fakeStore is a minimal MailStore double. Mailboxes present in boxes are
// opened successfully; anything else reports ErrNoSuchMailbox.
type fakeStore struct {
	boxes      map[string]bool
	created    []string
	saved      []string
	committed  []string
	rolledBack []string
	failSave   bool
	failCommit bool
}

func newFakeStore(boxes ...string) *fakeStore {
	m := map[string]bool{}
	for _, b := range boxes {
		m[b] = true
	}
	return &fakeStore{boxes: m}
}

func (s *fakeStore) OpenMailbox(name string) (MailboxHandle, error) {
	if s.boxes[name] {
		return name, nil
	}
	return nil, ErrNoSuchMailbox
}

func (s *fakeStore) CreateMailbox(name string) error {
	s.created = append(s.created, name)
	s.boxes[name] = true
	return nil
}

func (s *fakeStore) Subscribe(name string) error { return nil }

func (s *fakeStore) BeginTransaction(h MailboxHandle) (Transaction, error) {
	return h, nil
}

func (s *fakeStore) SaveMail(tx Transaction, msg *Message, flags, keywords []string) error {
	if s.failSave {
		return errors.New("save failed")
	}
	s.saved = append(s.saved, tx.(string))
	return nil
}

func (s *fakeStore) Commit(tx Transaction) error {
	if s.failCommit {
		return errors.New("commit failed")
	}
	s.committed = append(s.committed, tx.(string))
	return nil
}

func (s *fakeStore) Rollback(tx Transaction) error {
	s.rolledBack = append(s.rolledBack, tx.(string))
	return nil
}

func (s *fakeStore) LastError() (string, string) { return "", "" }

func newEnv(store MailStore, msg *Message) *Environment {
	return &Environment{
		Store:      store,
		Message:    msg,
		DefaultBox: "INBOX",
	}
}

func TestAddDeduplicatesEqualStoreActions(t *testing.T) {
	r := New()
	r.Add(StoreAction{}, Context{"mailbox": "Junk"}, 1, -1)
	r.Add(StoreAction{}, Context{"mailbox": "junk"}, 2, -1)

	require.Len(t, r.Actions(), 1, "two fileinto to the same folder (case-insensitive) must collapse")
	require.Equal(t, 1, r.Actions()[0].Line, "the earlier insertion wins")
}

func TestAddKeepsDistinctDestinations(t *testing.T) {
	r := New()
	r.Add(StoreAction{}, Context{"mailbox": "X"}, 1, -1)
	r.Add(StoreAction{}, Context{"mailbox": "Y"}, 2, -1)

	require.Len(t, r.Actions(), 2)
}

func TestAddSideEffectMergesFlagsIntoExistingAction(t *testing.T) {
	r := New()
	act := r.Add(StoreAction{}, Context{"mailbox": "X"}, 1, -1)
	r.AddSideEffect(act, SideEffect{Flags: []string{"\\Seen"}})
	r.AddSideEffect(act, SideEffect{Flags: []string{"\\Seen", "\\Flagged"}})

	got := toStrings(act.Ctx["flags"])
	require.Equal(t, []string{"\\Seen", "\\Flagged"}, got)
}

func TestEnsureImplicitKeepSkippedWhenSuppressed(t *testing.T) {
	r := New()
	r.SuppressKeep()
	r.EnsureImplicitKeep(KeepAction{}, "INBOX")

	require.Empty(t, r.Actions())
}

func TestEnsureImplicitKeepSkippedWhenExclusiveOverridePresent(t *testing.T) {
	r := New()
	r.Add(StoreAction{}, Context{"mailbox": "Junk"}, 1, -1)
	r.EnsureImplicitKeep(KeepAction{}, "INBOX")

	require.Len(t, r.Actions(), 1, "fileinto overrides the implicit keep")
}

func TestDiscardActionSuppressesImplicitKeepThroughExclusiveOverride(t *testing.T) {
	r := New()
	r.Add(DiscardAction{}, Context{}, 1, -1)

	require.True(t, r.KeepSuppressed(), "a recorded discard action must read back as suppressed")
	require.True(t, r.HasExclusiveOverride(), "discard is exclusive and distinct from keep")

	r.EnsureImplicitKeep(KeepAction{}, "INBOX")
	require.Len(t, r.Actions(), 1, "the implicit keep must not be added once discard is recorded")
}

func TestDiscardActionDedupsLikeEveryOtherExclusiveAction(t *testing.T) {
	r := New()
	r.Add(DiscardAction{}, Context{}, 1, -1)
	r.Add(DiscardAction{}, Context{}, 2, -1)

	require.Len(t, r.Actions(), 1, "repeated discard collapses the same way redirect/reject do")
}

func TestEnsureImplicitKeepIsIdempotent(t *testing.T) {
	r := New()
	r.EnsureImplicitKeep(KeepAction{}, "INBOX")
	r.EnsureImplicitKeep(KeepAction{}, "INBOX")

	require.Len(t, r.Actions(), 1)
}

func TestCommitRedundantStoreSkipsCopyButCommitsFlags(t *testing.T) {
	store := newFakeStore("A")
	msg := &Message{ID: "m1", OriginMailbox: "A"}
	env := newEnv(store, msg)

	r := New()
	r.Add(StoreAction{}, Context{"mailbox": "A", "flags": []string{"\\Seen"}}, 1, -1)

	status := r.Commit(env)
	require.Equal(t, sieveerr.OK, status)
	require.Empty(t, store.saved, "redundant store must not allocate a new mail object")
	require.True(t, env.MessageSaved)
}

func TestCommitAutoCreatesMissingMailbox(t *testing.T) {
	store := newFakeStore()
	env := newEnv(store, &Message{ID: "m1", OriginMailbox: "INBOX"})
	env.AutoCreate = true

	r := New()
	r.Add(StoreAction{}, Context{"mailbox": "Junk"}, 1, -1)

	status := r.Commit(env)
	require.Equal(t, sieveerr.OK, status)
	require.Contains(t, store.created, "Junk")
	require.True(t, env.MessageSaved)
}

func TestCommitFailsClosedWithoutAutoCreate(t *testing.T) {
	store := newFakeStore()
	env := newEnv(store, &Message{ID: "m1", OriginMailbox: "INBOX"})
	env.AutoCreate = false

	r := New()
	r.Add(StoreAction{}, Context{"mailbox": "Junk"}, 1, -1)

	status := r.Commit(env)
	require.Equal(t, sieveerr.Failure, status)
	require.False(t, env.MessageSaved)
}

func TestCommitRollsBackOnCommitFailure(t *testing.T) {
	store := newFakeStore("Junk")
	store.failCommit = true
	env := newEnv(store, &Message{ID: "m1", OriginMailbox: "INBOX"})

	r := New()
	r.Add(StoreAction{}, Context{"mailbox": "Junk"}, 1, -1)

	status := r.Commit(env)
	require.Equal(t, sieveerr.Failure, status)
	require.NotEmpty(t, store.rolledBack)
	require.False(t, env.MessageSaved)
}

func TestImplicitKeepSavesOnceWhenNothingElseSaved(t *testing.T) {
	store := newFakeStore("INBOX")
	env := newEnv(store, &Message{ID: "m1", OriginMailbox: "INBOX"})

	r := New()
	status := r.ImplicitKeep(env, KeepAction{})

	require.Equal(t, sieveerr.OK, status)
	require.True(t, env.MessageSaved)
	require.True(t, env.TriedDefaultSave)
}

func TestImplicitKeepNoopsWhenMessageAlreadySaved(t *testing.T) {
	store := newFakeStore("INBOX")
	env := newEnv(store, &Message{ID: "m1", OriginMailbox: "INBOX"})
	env.MessageSaved = true

	r := New()
	status := r.ImplicitKeep(env, KeepAction{})

	require.Equal(t, sieveerr.OK, status)
	require.False(t, env.TriedDefaultSave, "must not attempt a second save")
}

func TestImplicitKeepFailureMapsToKeepFailed(t *testing.T) {
	store := newFakeStore()
	env := newEnv(store, &Message{ID: "m1", OriginMailbox: "INBOX"})
	env.AutoCreate = false

	r := New()
	status := r.ImplicitKeep(env, KeepAction{})

	require.Equal(t, sieveerr.KeepFailed, status)
	require.False(t, env.MessageSaved)
}

func TestClearKeepPointerAllowsLaterScriptToReplaceKeep(t *testing.T) {
	r := New()
	r.EnsureImplicitKeep(KeepAction{}, "INBOX")
	require.Len(t, r.Actions(), 1)

	r.ClearKeepPointer()
	r.Add(StoreAction{}, Context{"mailbox": "Junk"}, 2, -1)
	r.EnsureImplicitKeep(KeepAction{}, "INBOX")

	require.Len(t, r.Actions(), 2, "the explicit store from the final script overrides the prior keep")
}

func TestRedirectDedupIsCaseInsensitiveOnAddress(t *testing.T) {
	r := New()
	r.Add(RedirectAction{}, Context{"address": "a@example.com"}, 1, -1)
	r.Add(RedirectAction{}, Context{"address": "A@EXAMPLE.COM"}, 2, -1)

	require.Len(t, r.Actions(), 1)
}

func TestRejectDedupIgnoresReasonText(t *testing.T) {
	r := New()
	r.Add(RejectAction{}, Context{"reason": "spam"}, 1, -1)
	r.Add(RejectAction{}, Context{"reason": "virus"}, 2, -1)

	require.Len(t, r.Actions(), 1, "only one bounce is ever sent")
}

func TestNotifyDedupRequiresExactMethodAndMessage(t *testing.T) {
	r := New()
	r.Add(NotifyAction{}, Context{"method": "mailto:a@example.com", "message": "hi"}, 1, -1)
	r.Add(NotifyAction{}, Context{"method": "mailto:a@example.com", "message": "bye"}, 2, -1)
	r.Add(NotifyAction{}, Context{"method": "mailto:a@example.com", "message": "hi"}, 3, -1)

	require.Len(t, r.Actions(), 2, "distinct messages stay distinct; the exact repeat collapses")
}
