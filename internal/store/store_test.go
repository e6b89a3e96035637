package store

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(Config{})
	if err := s.Seed("admin-pass"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return s
}

func TestLoginWrongPasswordLeavesStateUnchanged(t *testing.T) {
	s := newTestStore(t)

	if s.Login("admin", "wrong") {
		t.Fatal("expected login with wrong password to fail")
	}
	if _, ok := s.CurrentUser(); ok {
		t.Fatal("expected no current user after failed login")
	}
	if !s.Login("admin", "admin-pass") {
		t.Fatal("expected login with correct password to succeed")
	}
	u, ok := s.CurrentUser()
	if !ok || u.Username != "admin" {
		t.Fatalf("expected current user admin, got %+v ok=%v", u, ok)
	}
}

func TestLoginInitializesCurrentBot(t *testing.T) {
	s := newTestStore(t)
	editor, err := s.AddUser("editor", "pw", RoleClientEditor, nil)
	if err != nil {
		t.Fatalf("add user: %v", err)
	}
	b1, err := s.AddBot("B1", "", editor.ID, ModelConfig{Provider: ProviderOpenAI, Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("add bot: %v", err)
	}
	if _, err := s.AddBot("B2", "", "", ModelConfig{Provider: ProviderOpenAI, Model: "gpt-4o"}); err != nil {
		t.Fatalf("add bot: %v", err)
	}

	if !s.Login("editor", "pw") {
		t.Fatal("login failed")
	}
	cb, ok := s.CurrentBot()
	if !ok || cb.ID != b1.ID {
		t.Fatalf("expected current bot %s, got %+v ok=%v", b1.ID, cb.ID, ok)
	}

	s.Logout()
	if _, ok := s.CurrentBot(); ok {
		t.Fatal("expected current bot cleared on logout")
	}
}

func TestVisibleBotsByRole(t *testing.T) {
	s := newTestStore(t)
	viewer, err := s.AddUser("viewer", "pw", RoleClientViewer, nil)
	if err != nil {
		t.Fatalf("add user: %v", err)
	}
	b1, _ := s.AddBot("B1", "", viewer.ID, ModelConfig{Provider: ProviderOpenAI, Model: "gpt-4o"})
	if _, err := s.AddBot("B2", "", "", ModelConfig{Provider: ProviderAnthropic, Model: "claude"}); err != nil {
		t.Fatalf("add bot: %v", err)
	}

	admin, _ := s.UserByName("admin")
	if got := s.VisibleBots(admin); len(got) != 2 {
		t.Fatalf("expected admin to see 2 bots, got %d", len(got))
	}
	got := s.VisibleBots(viewer)
	if len(got) != 1 || got[0].ID != b1.ID {
		t.Fatalf("expected viewer to see only B1, got %+v", got)
	}
}

func TestDeleteCredentialClearsReferences(t *testing.T) {
	s := newTestStore(t)
	c1 := s.AddCredential("C1", ProviderOpenAI, "sealed-1")
	c2 := s.AddCredential("C2", ProviderAnthropic, "sealed-2")

	b1, err := s.AddBot("B1", "", "", ModelConfig{Provider: ProviderOpenAI, Model: "gpt-4o", CredentialID: c1.ID})
	if err != nil {
		t.Fatalf("add bot: %v", err)
	}
	if _, ok := s.AddModelConfig(b1.ID, ModelConfig{Provider: ProviderAnthropic, Model: "claude", CredentialID: c2.ID}); !ok {
		t.Fatal("add model config failed")
	}

	s.DeleteCredential(c1.ID)

	got, _ := s.BotByID(b1.ID)
	if got.ModelConfigs[0].CredentialID != "" {
		t.Fatalf("expected cleared credential id, got %q", got.ModelConfigs[0].CredentialID)
	}
	if !got.ModelConfigs[0].IsDefault {
		t.Fatal("expected default flag untouched by credential delete")
	}
	if got.ModelConfigs[1].CredentialID != c2.ID {
		t.Fatalf("expected unrelated config untouched, got %q", got.ModelConfigs[1].CredentialID)
	}

	// unknown id is a silent no-op
	s.DeleteCredential("nope")
	if len(s.Credentials()) != 1 {
		t.Fatalf("expected 1 credential left, got %d", len(s.Credentials()))
	}
}

func TestDeleteUserCascadesAndProtectsAdmin(t *testing.T) {
	s := newTestStore(t)
	u, err := s.AddUser("alice", "pw", RoleClientAdmin, nil)
	if err != nil {
		t.Fatalf("add user: %v", err)
	}
	b, _ := s.AddBot("B1", "", u.ID, ModelConfig{Provider: ProviderOpenAI, Model: "gpt-4o"})

	if err := s.DeleteUser(u.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	got, _ := s.BotByID(b.ID)
	if got.HasAccess(u.ID) {
		t.Fatal("expected user id stripped from bot access list")
	}

	admin, _ := s.UserByName("admin")
	if err := s.DeleteUser(admin.ID); err != ErrProtectedUser {
		t.Fatalf("expected ErrProtectedUser, got %v", err)
	}
	if _, ok := s.UserByName("admin"); !ok {
		t.Fatal("expected admin account to survive")
	}
}

func TestUpdateUserPasswordSemantics(t *testing.T) {
	s := newTestStore(t)
	u, err := s.AddUser("bob", "old-pw", RoleClientViewer, nil)
	if err != nil {
		t.Fatalf("add user: %v", err)
	}

	if err := s.UpdateUser(u.ID, UserUpdate{Role: RoleClientEditor}, nil); err != nil {
		t.Fatalf("update user: %v", err)
	}
	if !s.Login("bob", "old-pw") {
		t.Fatal("expected old password to survive an update without password")
	}

	if err := s.UpdateUser(u.ID, UserUpdate{Password: "new-pw"}, nil); err != nil {
		t.Fatalf("update password: %v", err)
	}
	if s.Login("bob", "old-pw") {
		t.Fatal("expected old password rejected after change")
	}
	if !s.Login("bob", "new-pw") {
		t.Fatal("expected new password accepted")
	}
}

func TestUpdateUserReconcilesAccessLists(t *testing.T) {
	s := newTestStore(t)
	u, _ := s.AddUser("carol", "pw", RoleClientEditor, nil)
	b1, _ := s.AddBot("B1", "", u.ID, ModelConfig{Provider: ProviderOpenAI, Model: "gpt-4o"})
	b2, _ := s.AddBot("B2", "", "", ModelConfig{Provider: ProviderOpenAI, Model: "gpt-4o"})

	if err := s.UpdateUser(u.ID, UserUpdate{}, []string{b2.ID}); err != nil {
		t.Fatalf("update user: %v", err)
	}
	g1, _ := s.BotByID(b1.ID)
	g2, _ := s.BotByID(b2.ID)
	if g1.HasAccess(u.ID) {
		t.Fatal("expected access removed from B1")
	}
	if !g2.HasAccess(u.ID) {
		t.Fatal("expected access granted on B2")
	}
}

func TestUsernameUniqueness(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.AddUser("admin", "pw", RoleClientViewer, nil); err != ErrUsernameTaken {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestModelConfigSingleDefault(t *testing.T) {
	s := newTestStore(t)
	b, err := s.AddBot("B1", "", "", ModelConfig{Provider: ProviderOpenAI, Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("add bot: %v", err)
	}
	second, ok := s.AddModelConfig(b.ID, ModelConfig{Provider: ProviderAnthropic, Model: "claude"})
	if !ok {
		t.Fatal("add model config failed")
	}
	assertSingleDefault(t, s, b.ID)

	if err := s.SetDefaultModelConfig(b.ID, second.ID); err != nil {
		t.Fatalf("set default: %v", err)
	}
	assertSingleDefault(t, s, b.ID)
	got, _ := s.BotByID(b.ID)
	if dm, _ := got.DefaultModel(); dm.ID != second.ID {
		t.Fatalf("expected %d as default, got %d", second.ID, dm.ID)
	}

	if err := s.DeleteModelConfig(b.ID, second.ID); err != nil {
		t.Fatalf("delete model config: %v", err)
	}
	assertSingleDefault(t, s, b.ID)

	got, _ = s.BotByID(b.ID)
	if err := s.DeleteModelConfig(b.ID, got.ModelConfigs[0].ID); err != ErrLastModel {
		t.Fatalf("expected ErrLastModel, got %v", err)
	}
}

func assertSingleDefault(t *testing.T, s *Store, botID string) {
	t.Helper()
	b, ok := s.BotByID(botID)
	if !ok {
		t.Fatalf("bot %s not found", botID)
	}
	defaults := 0
	for _, mc := range b.ModelConfigs {
		if mc.IsDefault {
			defaults++
		}
	}
	if defaults != 1 {
		t.Fatalf("expected exactly one default config, got %d of %d", defaults, len(b.ModelConfigs))
	}
}

func TestAddQAItemAppendsWithFreshID(t *testing.T) {
	s := newTestStore(t)
	b, _ := s.AddBot("B1", "", "", ModelConfig{Provider: ProviderOpenAI, Model: "gpt-4o"})
	s.SetCurrentBot(b.ID)

	first, ok := s.AddQAItemToCurrentBot("q1", "a1")
	if !ok {
		t.Fatal("add qa item failed")
	}
	second, ok := s.AddQAItemToCurrentBot("q2", "a2")
	if !ok {
		t.Fatal("add qa item failed")
	}
	if second.ID == first.ID {
		t.Fatalf("expected distinct ids, both %d", first.ID)
	}

	got, _ := s.BotByID(b.ID)
	if len(got.QADatabase) != 2 || got.QADatabase[1].ID != second.ID {
		t.Fatalf("expected new item appended at end, got %+v", got.QADatabase)
	}
}

func TestCurrentBotActionsNoOpWithoutSelection(t *testing.T) {
	s := newTestStore(t)
	if _, ok := s.AddQAItemToCurrentBot("q", "a"); ok {
		t.Fatal("expected no-op without a selected bot")
	}
	if _, ok := s.AddLogToCurrentBot(ConversationLog{Question: "q"}); ok {
		t.Fatal("expected no-op without a selected bot")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := newTestStore(t)
	c := s.AddCredential("C1", ProviderOpenAI, "sealed")
	u, _ := s.AddUser("dave", "pw", RoleClientEditor, nil)
	b, _ := s.AddBot("B1", "", u.ID, ModelConfig{Provider: ProviderOpenAI, Model: "gpt-4o", CredentialID: c.ID})
	s.AddQAItem(b.ID, "q", "a")
	s.AddUnansweredQuestion(b.ID, "huh", "telegram")
	s.AddFile(b.ID, "kb.pdf", 1024)
	s.AddConversationLog(b.ID, ConversationLog{Channel: "telegram", Question: "q", Answer: "a", Answered: true})
	s.AddOrganization("Acme Corp", PlanPro)

	snap := s.Snapshot()
	raw, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}
	var decoded Snapshot
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if !reflect.DeepEqual(snap, decoded) {
		t.Fatalf("snapshot round trip mismatch:\n%+v\n%+v", snap, decoded)
	}

	restored := New(Config{})
	restored.Restore(decoded)
	if !reflect.DeepEqual(snap, restored.Snapshot()) {
		t.Fatal("restored store does not reproduce the snapshot")
	}
	if _, ok := restored.CurrentUser(); ok {
		t.Fatal("session selection must not be persisted")
	}
	// restored sequence must not reissue nested ids
	item, ok := restored.AddQAItem(b.ID, "q2", "a2")
	if !ok {
		t.Fatal("add qa item on restored store failed")
	}
	for _, existing := range snap.Bots[0].QADatabase {
		if existing.ID == item.ID {
			t.Fatalf("restored store reissued id %d", item.ID)
		}
	}
}

func TestDeleteBotReleasesQuotaAndSelection(t *testing.T) {
	s := newTestStore(t)
	org := s.AddOrganization("Acme", PlanFree)
	b, err := s.AddBot("B1", org.ID, "", ModelConfig{Provider: ProviderOpenAI, Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("add bot: %v", err)
	}
	if _, err := s.AddBot("B2", org.ID, "", ModelConfig{Provider: ProviderOpenAI, Model: "gpt-4o"}); err != ErrQuotaExceeded {
		t.Fatalf("expected ErrQuotaExceeded on free plan, got %v", err)
	}

	s.SetCurrentBot(b.ID)
	if err := s.DeleteBot(b.ID); err != nil {
		t.Fatalf("delete bot: %v", err)
	}
	if _, ok := s.CurrentBot(); ok {
		t.Fatal("expected selection cleared after bot delete")
	}
	if _, err := s.AddBot("B2", org.ID, "", ModelConfig{Provider: ProviderOpenAI, Model: "gpt-4o"}); err != nil {
		t.Fatalf("expected quota released after delete, got %v", err)
	}
}

func TestResolveUnansweredPromotesToQA(t *testing.T) {
	s := newTestStore(t)
	b, _ := s.AddBot("B1", "", "", ModelConfig{Provider: ProviderOpenAI, Model: "gpt-4o"})
	q, ok := s.AddUnansweredQuestion(b.ID, "what is the refund policy", "telegram")
	if !ok {
		t.Fatal("add unanswered failed")
	}
	if !s.ResolveUnansweredQuestion(b.ID, q.ID, "30 days, no questions asked") {
		t.Fatal("resolve failed")
	}
	got, _ := s.BotByID(b.ID)
	if !got.Unanswered[0].Resolved {
		t.Fatal("expected question marked resolved")
	}
	if len(got.QADatabase) != 1 || got.QADatabase[0].Question != q.Question {
		t.Fatalf("expected promoted qa item, got %+v", got.QADatabase)
	}
}

func TestFileStatusTransitions(t *testing.T) {
	s := newTestStore(t)
	b, _ := s.AddBot("B1", "", "", ModelConfig{Provider: ProviderOpenAI, Model: "gpt-4o"})
	f, ok := s.AddFile(b.ID, "manual.pdf", 2048)
	if !ok {
		t.Fatal("add file failed")
	}
	if f.Status != FilePendingUpload {
		t.Fatalf("expected pending_upload, got %s", f.Status)
	}
	for _, st := range []FileStatus{FileProcessingUpload, FilePendingRAG, FileProcessingRAG, FileReady} {
		if !s.SetFileStatus(b.ID, f.ID, st, "") {
			t.Fatalf("set status %s failed", st)
		}
	}
	got, _ := s.BotByID(b.ID)
	if got.Files[0].Status != FileReady {
		t.Fatalf("expected ready, got %s", got.Files[0].Status)
	}
	if s.SetFileStatus(b.ID, 99999, FileError, "boom") {
		t.Fatal("expected unknown file id to no-op")
	}
}

func TestInviteFlow(t *testing.T) {
	s := newTestStore(t)
	org := s.AddOrganization("Acme", PlanPro)
	inv, err := s.CreateInvite(org.ID, "new@acme.test", RoleClientEditor, 48*time.Hour)
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}
	u, err := s.AcceptInvite(inv.Token, "newbie", "pw")
	if err != nil {
		t.Fatalf("accept invite: %v", err)
	}
	if u.Role != RoleClientEditor {
		t.Fatalf("expected invited role, got %s", u.Role)
	}
	if _, err := s.AcceptInvite(inv.Token, "other", "pw"); err != ErrInviteExpired {
		t.Fatalf("expected ErrInviteExpired on reuse, got %v", err)
	}
}
