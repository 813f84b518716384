package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"testing"

	"gitlab.com/ellera/guildhall/internal/models"
)

var testSDB *SharedDB

func TestMain(m *testing.M) {
	url := os.Getenv("GUILDHALL_TEST_DATABASE_URL")
	if url == "" {
		// Every test skips itself through requireDB.
		os.Exit(m.Run())
	}
	err := os.Chdir("./../..")
	if err != nil {
		panic(err)
	}
	// Reset database before testing
	if err := MigrateDown(url); err != nil {
		panic(err)
	}
	if err := MigrateUp(url); err != nil {
		panic(err)
	}
	sdb, err := Connect(&models.EnvConfig{DatabaseURL: url})
	if err != nil {
		panic(err)
	}
	testSDB = &sdb
	code := m.Run()
	testSDB.Close()
	os.Exit(code)
}

func requireDB(t *testing.T) *SharedDB {
	t.Helper()
	if testSDB == nil {
		t.Skip("GUILDHALL_TEST_DATABASE_URL not set")
	}
	return testSDB
}

var profileCounter int64

func mockProfile() *models.Profile {
	n := atomic.AddInt64(&profileCounter, 1)
	return &models.Profile{
		Name:  fmt.Sprintf("Pippo%d", n),
		Email: fmt.Sprintf("pippo%d@strana.com", n),
	}
}

func createProfile(t *testing.T, sdb *SharedDB) (*models.Profile, *ProfileH) {
	t.Helper()
	profile := mockProfile()
	pH, err := sdb.CreateProfile(context.Background(), profile)
	if err != nil {
		t.Fatalf("CreateProfile(%v) = %v, want nil", profile, err)
	}
	return profile, pH
}

func createServer(t *testing.T, sdb *SharedDB, creator *models.Profile) *models.Server {
	t.Helper()
	server, err := sdb.CreateServer(context.Background(), "Test", creator.ID, "http://localhost/images/x.png")
	if err != nil {
		t.Fatalf("CreateServer() = %v, want nil", err)
	}
	return server
}

func findMember(view *models.ServerView, profileID int) *models.Member {
	for i := range view.Members {
		if view.Members[i].ProfileID == profileID {
			return &view.Members[i].Member
		}
	}
	return nil
}

func TestProfile(t *testing.T) {
	sdb := requireDB(t)
	ctx := context.Background()

	profile, pH := createProfile(t, sdb)
	read, err := pH.Read(ctx)
	if err != nil || read.Email != profile.Email {
		t.Fatalf("ProfileH.Read() = %v, %v, want email %s", read, err, profile.Email)
	}

	// Same email again SHOULD fail
	dup := &models.Profile{Name: "Dup", Email: profile.Email}
	_, err = sdb.CreateProfile(ctx, dup)
	if !errors.Is(err, models.ErrEmailAlreadyUsed) {
		t.Fatalf("CreateProfile(duplicate) = %v, want ErrEmailAlreadyUsed", err)
	}

	bad := &models.Profile{Name: "Bad", Email: "asdjfkjsdhf"}
	_, err = sdb.CreateProfile(ctx, bad)
	if !errors.Is(err, models.ErrInvalidFormat) {
		t.Fatalf("CreateProfile(bad email) = %v, want ErrInvalidFormat", err)
	}

	_, err = sdb.GetProfileByID(ctx, 999999)
	if !errors.Is(err, models.ErrProfileNotFound) {
		t.Fatalf("GetProfileByID(999999) = %v, want ErrProfileNotFound", err)
	}
}

func TestCreateServerInvariants(t *testing.T) {
	sdb := requireDB(t)
	ctx := context.Background()

	creator, pH := createProfile(t, sdb)
	server := createServer(t, sdb, creator)
	if server.InviteCode == "" {
		t.Fatalf("CreateServer() invite code empty, want generated")
	}

	h, err := sdb.GetServerH(ctx, server.ID, pH)
	if err != nil {
		t.Fatalf("GetServerH(%d) = %v, want nil", server.ID, err)
	}
	view, err := h.Read(ctx)
	if err != nil {
		t.Fatalf("ServerH.Read() = %v, want nil", err)
	}

	if len(view.Channels) != 1 || view.Channels[0].Name != models.DefaultChannelName || view.Channels[0].Type != models.ChannelTypeText {
		t.Fatalf("new server channels = %v, want exactly one %q TEXT channel", view.Channels, models.DefaultChannelName)
	}
	if len(view.Members) != 1 {
		t.Fatalf("new server members = %v, want exactly one", view.Members)
	}
	m := view.Members[0]
	if m.Role != models.RoleAdmin || m.ProfileID != creator.ID || m.Profile.Email != creator.Email {
		t.Fatalf("creator member = %+v, want ADMIN referencing %d", m, creator.ID)
	}
}

func TestCreateServerUnknownProfile(t *testing.T) {
	sdb := requireDB(t)

	_, err := sdb.CreateServer(context.Background(), "Ghost", 999999, "http://x/y.png")
	if !errors.Is(err, models.ErrProfileNotFound) {
		t.Fatalf("CreateServer(unknown profile) = %v, want ErrProfileNotFound", err)
	}
}

func TestGetServerNonMember(t *testing.T) {
	sdb := requireDB(t)
	ctx := context.Background()

	creator, _ := createProfile(t, sdb)
	server := createServer(t, sdb, creator)
	_, otherH := createProfile(t, sdb)

	_, err := sdb.GetServerH(ctx, server.ID, otherH)
	if !errors.Is(err, models.ErrServerNotFound) {
		t.Fatalf("GetServerH(non-member) = %v, want ErrServerNotFound", err)
	}
}

func TestListServersByMember(t *testing.T) {
	sdb := requireDB(t)
	ctx := context.Background()

	creator, _ := createProfile(t, sdb)
	server := createServer(t, sdb, creator)

	servers, err := sdb.ListServersByMember(ctx, creator.Email)
	if err != nil || len(servers) != 1 || servers[0].ID != server.ID {
		t.Fatalf("ListServersByMember(%s) = %v, %v, want [%d]", creator.Email, servers, err, server.ID)
	}

	servers, err = sdb.ListServersByMember(ctx, "nobody@nowhere.com")
	if err != nil || len(servers) != 0 {
		t.Fatalf("ListServersByMember(unknown) = %v, %v, want empty, nil", servers, err)
	}
}

func TestInviteRedemption(t *testing.T) {
	sdb := requireDB(t)
	ctx := context.Background()

	creator, adminH := createProfile(t, sdb)
	server := createServer(t, sdb, creator)
	guest, _ := createProfile(t, sdb)

	joined, err := sdb.AddMemberByInvite(ctx, server.InviteCode, guest.Email)
	if err != nil || joined.ID != server.ID {
		t.Fatalf("AddMemberByInvite() = %v, %v, want server %d", joined, err, server.ID)
	}

	h, err := sdb.GetServerH(ctx, server.ID, adminH)
	if err != nil {
		t.Fatal(err)
	}
	view, err := h.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(view.Members) != 2 {
		t.Fatalf("members after join = %d, want 2", len(view.Members))
	}
	joinedMember := findMember(view, guest.ID)
	if joinedMember == nil || joinedMember.Role != models.RoleGuest {
		t.Fatalf("joined member = %v, want GUEST", joinedMember)
	}

	// Second redemption with the same profile SHOULD fail
	_, err = sdb.AddMemberByInvite(ctx, server.InviteCode, guest.Email)
	if !errors.Is(err, models.ErrAlreadyMember) {
		t.Fatalf("AddMemberByInvite(twice) = %v, want ErrAlreadyMember", err)
	}

	_, err = sdb.AddMemberByInvite(ctx, "not-a-code", guest.Email)
	if !errors.Is(err, models.ErrServerNotFound) {
		t.Fatalf("AddMemberByInvite(bad code) = %v, want ErrServerNotFound", err)
	}
}

func TestInviteRotation(t *testing.T) {
	sdb := requireDB(t)
	ctx := context.Background()

	creator, adminH := createProfile(t, sdb)
	server := createServer(t, sdb, creator)
	oldCode := server.InviteCode

	h, err := sdb.GetServerH(ctx, server.ID, adminH)
	if err != nil {
		t.Fatal(err)
	}
	updated, err := h.RegenerateInviteCode(ctx)
	if err != nil || updated.InviteCode == oldCode {
		t.Fatalf("RegenerateInviteCode() = %v, %v, want new code", updated, err)
	}

	guest, _ := createProfile(t, sdb)
	_, err = sdb.AddMemberByInvite(ctx, oldCode, guest.Email)
	if !errors.Is(err, models.ErrServerNotFound) {
		t.Fatalf("AddMemberByInvite(old code) = %v, want ErrServerNotFound", err)
	}
	_, err = sdb.AddMemberByInvite(ctx, updated.InviteCode, guest.Email)
	if err != nil {
		t.Fatalf("AddMemberByInvite(new code) = %v, want nil", err)
	}
}

func TestRegenerateInviteCodeRequiresAdmin(t *testing.T) {
	sdb := requireDB(t)
	ctx := context.Background()

	creator, _ := createProfile(t, sdb)
	server := createServer(t, sdb, creator)
	guest, guestH := createProfile(t, sdb)
	if _, err := sdb.AddMemberByInvite(ctx, server.InviteCode, guest.Email); err != nil {
		t.Fatal(err)
	}

	h, err := sdb.GetServerH(ctx, server.ID, guestH)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.RegenerateInviteCode(ctx); !errors.Is(err, models.ErrPermDenied) {
		t.Fatalf("RegenerateInviteCode(guest) = %v, want ErrPermDenied", err)
	}
	if _, err := h.Update(ctx, "Renamed", "http://x/z.png"); !errors.Is(err, models.ErrPermDenied) {
		t.Fatalf("Update(guest) = %v, want ErrPermDenied", err)
	}
}

func TestCreateChannelRoles(t *testing.T) {
	sdb := requireDB(t)
	ctx := context.Background()

	creator, adminH := createProfile(t, sdb)
	server := createServer(t, sdb, creator)
	guest, guestH := createProfile(t, sdb)
	if _, err := sdb.AddMemberByInvite(ctx, server.InviteCode, guest.Email); err != nil {
		t.Fatal(err)
	}

	guestServerH, err := sdb.GetServerH(ctx, server.ID, guestH)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := guestServerH.CreateChannel(ctx, "chat", models.ChannelTypeText); !errors.Is(err, models.ErrPermDenied) {
		t.Fatalf("CreateChannel(guest) = %v, want ErrPermDenied", err)
	}

	adminServerH, err := sdb.GetServerH(ctx, server.ID, adminH)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := adminServerH.CreateChannel(ctx, "", models.ChannelTypeText); !errors.Is(err, models.ErrInvalidFormat) {
		t.Fatalf("CreateChannel(empty name) = %v, want ErrInvalidFormat", err)
	}
	if _, err := adminServerH.CreateChannel(ctx, "chat", models.ChannelType("SMOKE")); !errors.Is(err, models.ErrInvalidFormat) {
		t.Fatalf("CreateChannel(bad type) = %v, want ErrInvalidFormat", err)
	}
	channel, err := adminServerH.CreateChannel(ctx, "voice", models.ChannelTypeAudio)
	if err != nil || channel.Type != models.ChannelTypeAudio {
		t.Fatalf("CreateChannel(admin) = %v, %v, want AUDIO channel", channel, err)
	}

	// Promote guest to MODERATOR, then moderators may create channels too
	view, err := adminServerH.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	guestMember := findMember(view, guest.ID)
	if err := adminServerH.ChangeMemberRole(ctx, guestMember.ID, models.RoleModerator); err != nil {
		t.Fatalf("ChangeMemberRole(promote) = %v, want nil", err)
	}
	guestServerH, err = sdb.GetServerH(ctx, server.ID, guestH)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := guestServerH.CreateChannel(ctx, "mod-corner", models.ChannelTypeText); err != nil {
		t.Fatalf("CreateChannel(moderator) = %v, want nil", err)
	}
}

func TestDeleteChannel(t *testing.T) {
	sdb := requireDB(t)
	ctx := context.Background()

	creator, adminH := createProfile(t, sdb)
	server := createServer(t, sdb, creator)

	h, err := sdb.GetServerH(ctx, server.ID, adminH)
	if err != nil {
		t.Fatal(err)
	}
	view, err := h.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	general := view.Channels[0]

	// The default channel is protected for everyone, creator included
	if err := h.DeleteChannel(ctx, general.ID); !errors.Is(err, models.ErrPermDenied) {
		t.Fatalf("DeleteChannel(general) = %v, want ErrPermDenied", err)
	}

	channel, err := h.CreateChannel(ctx, "toys", models.ChannelTypeText)
	if err != nil {
		t.Fatal(err)
	}

	// A member who didn't create the channel can't delete it
	other, otherH := createProfile(t, sdb)
	if _, err := sdb.AddMemberByInvite(ctx, server.InviteCode, other.Email); err != nil {
		t.Fatal(err)
	}
	otherServerH, err := sdb.GetServerH(ctx, server.ID, otherH)
	if err != nil {
		t.Fatal(err)
	}
	if err := otherServerH.DeleteChannel(ctx, channel.ID); !errors.Is(err, models.ErrPermDenied) {
		t.Fatalf("DeleteChannel(non-creator) = %v, want ErrPermDenied", err)
	}

	if err := h.DeleteChannel(ctx, channel.ID); err != nil {
		t.Fatalf("DeleteChannel(creator) = %v, want nil", err)
	}
	if err := h.DeleteChannel(ctx, channel.ID); !errors.Is(err, models.ErrChannelNotFound) {
		t.Fatalf("DeleteChannel(gone) = %v, want ErrChannelNotFound", err)
	}
}

func TestChangeMemberRole(t *testing.T) {
	sdb := requireDB(t)
	ctx := context.Background()

	creator, adminH := createProfile(t, sdb)
	server := createServer(t, sdb, creator)
	guest, guestH := createProfile(t, sdb)
	if _, err := sdb.AddMemberByInvite(ctx, server.InviteCode, guest.Email); err != nil {
		t.Fatal(err)
	}

	adminServerH, err := sdb.GetServerH(ctx, server.ID, adminH)
	if err != nil {
		t.Fatal(err)
	}
	view, err := adminServerH.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	adminMember := findMember(view, creator.ID)
	guestMember := findMember(view, guest.ID)

	// Non-admin callers are rejected for every target
	guestServerH, err := sdb.GetServerH(ctx, server.ID, guestH)
	if err != nil {
		t.Fatal(err)
	}
	if err := guestServerH.ChangeMemberRole(ctx, adminMember.ID, models.RoleGuest); !errors.Is(err, models.ErrPermDenied) {
		t.Fatalf("ChangeMemberRole(guest caller) = %v, want ErrPermDenied", err)
	}
	if err := guestServerH.ChangeMemberRole(ctx, guestMember.ID, models.RoleAdmin); !errors.Is(err, models.ErrPermDenied) {
		t.Fatalf("ChangeMemberRole(self escalation) = %v, want ErrPermDenied", err)
	}

	// Admin can't change their own role
	if err := adminServerH.ChangeMemberRole(ctx, adminMember.ID, models.RoleGuest); !errors.Is(err, models.ErrPermDenied) {
		t.Fatalf("ChangeMemberRole(own role) = %v, want ErrPermDenied", err)
	}

	if err := adminServerH.ChangeMemberRole(ctx, guestMember.ID, models.MemberRole("OWNER")); !errors.Is(err, models.ErrInvalidFormat) {
		t.Fatalf("ChangeMemberRole(bad role) = %v, want ErrInvalidFormat", err)
	}

	if err := adminServerH.ChangeMemberRole(ctx, guestMember.ID, models.RoleModerator); err != nil {
		t.Fatalf("ChangeMemberRole(promote) = %v, want nil", err)
	}
	view, err = adminServerH.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if m := findMember(view, guest.ID); m.Role != models.RoleModerator {
		t.Fatalf("promoted member role = %s, want MODERATOR", m.Role)
	}

	_, err = sdb.GetMember(ctx, 999999)
	if !errors.Is(err, models.ErrMemberNotFound) {
		t.Fatalf("GetMember(999999) = %v, want ErrMemberNotFound", err)
	}
}

func TestLastAdminProtection(t *testing.T) {
	sdb := requireDB(t)
	ctx := context.Background()

	creator, adminH := createProfile(t, sdb)
	server := createServer(t, sdb, creator)
	second, _ := createProfile(t, sdb)
	if _, err := sdb.AddMemberByInvite(ctx, server.InviteCode, second.Email); err != nil {
		t.Fatal(err)
	}

	adminServerH, err := sdb.GetServerH(ctx, server.ID, adminH)
	if err != nil {
		t.Fatal(err)
	}
	view, err := adminServerH.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	creatorMember := findMember(view, creator.ID)
	secondMember := findMember(view, second.ID)

	// Promote second to ADMIN, then the creator may be demoted
	if err := adminServerH.ChangeMemberRole(ctx, secondMember.ID, models.RoleAdmin); err != nil {
		t.Fatal(err)
	}
	secondH, err := sdb.GetProfileH(ctx, second.Email)
	if err != nil {
		t.Fatal(err)
	}
	secondServerH, err := sdb.GetServerH(ctx, server.ID, secondH)
	if err != nil {
		t.Fatal(err)
	}
	if err := secondServerH.ChangeMemberRole(ctx, creatorMember.ID, models.RoleGuest); err != nil {
		t.Fatalf("ChangeMemberRole(demote one of two admins) = %v, want nil", err)
	}

	// Now second is the only ADMIN: demoting or removing them must fail
	if err := adminServerH.ChangeMemberRole(ctx, secondMember.ID, models.RoleGuest); !errors.Is(err, models.ErrPermDenied) {
		t.Fatalf("ChangeMemberRole(last admin) = %v, want ErrPermDenied", err)
	}
	if err := secondServerH.DeleteMember(ctx, secondMember.ID); !errors.Is(err, models.ErrPermDenied) {
		t.Fatalf("DeleteMember(last admin self) = %v, want ErrPermDenied", err)
	}
}

func TestDeleteMember(t *testing.T) {
	sdb := requireDB(t)
	ctx := context.Background()

	creator, adminH := createProfile(t, sdb)
	server := createServer(t, sdb, creator)
	guestA, guestAH := createProfile(t, sdb)
	guestB, _ := createProfile(t, sdb)
	if _, err := sdb.AddMemberByInvite(ctx, server.InviteCode, guestA.Email); err != nil {
		t.Fatal(err)
	}
	if _, err := sdb.AddMemberByInvite(ctx, server.InviteCode, guestB.Email); err != nil {
		t.Fatal(err)
	}

	adminServerH, err := sdb.GetServerH(ctx, server.ID, adminH)
	if err != nil {
		t.Fatal(err)
	}
	view, err := adminServerH.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	memberA := findMember(view, guestA.ID)
	memberB := findMember(view, guestB.ID)

	// A guest can't kick another member
	guestAServerH, err := sdb.GetServerH(ctx, server.ID, guestAH)
	if err != nil {
		t.Fatal(err)
	}
	if err := guestAServerH.DeleteMember(ctx, memberB.ID); !errors.Is(err, models.ErrPermDenied) {
		t.Fatalf("DeleteMember(guest kicks other) = %v, want ErrPermDenied", err)
	}

	// Self-removal is allowed
	if err := guestAServerH.DeleteMember(ctx, memberA.ID); err != nil {
		t.Fatalf("DeleteMember(self) = %v, want nil", err)
	}

	// Admin kicks
	if err := adminServerH.DeleteMember(ctx, memberB.ID); err != nil {
		t.Fatalf("DeleteMember(admin kick) = %v, want nil", err)
	}
	if err := adminServerH.DeleteMember(ctx, memberB.ID); !errors.Is(err, models.ErrMemberNotFound) {
		t.Fatalf("DeleteMember(gone) = %v, want ErrMemberNotFound", err)
	}
}

func TestLeaveServer(t *testing.T) {
	sdb := requireDB(t)
	ctx := context.Background()

	creator, _ := createProfile(t, sdb)
	server := createServer(t, sdb, creator)
	guest, guestH := createProfile(t, sdb)
	if _, err := sdb.AddMemberByInvite(ctx, server.InviteCode, guest.Email); err != nil {
		t.Fatal(err)
	}

	h, err := sdb.GetServerH(ctx, server.ID, guestH)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Leave(ctx); err != nil {
		t.Fatalf("Leave() = %v, want nil", err)
	}
	// deleteMany semantics: a second call affects nothing and succeeds
	if err := h.Leave(ctx); err != nil {
		t.Fatalf("Leave(again) = %v, want nil", err)
	}
	if _, err := sdb.GetServerH(ctx, server.ID, guestH); !errors.Is(err, models.ErrServerNotFound) {
		t.Fatalf("GetServerH(after leave) = %v, want ErrServerNotFound", err)
	}
}

// TestServerLifecycle walks the whole scenario: create, join, promote,
// rejected demotion, delete.
func TestServerLifecycle(t *testing.T) {
	sdb := requireDB(t)
	ctx := context.Background()

	profileA, aH := createProfile(t, sdb)
	server := createServer(t, sdb, profileA)

	aServerH, err := sdb.GetServerH(ctx, server.ID, aH)
	if err != nil {
		t.Fatal(err)
	}
	view, err := aServerH.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(view.Channels) != 1 || len(view.Members) != 1 {
		t.Fatalf("fresh server = %d channels, %d members, want 1, 1", len(view.Channels), len(view.Members))
	}

	profileB, bH := createProfile(t, sdb)
	if _, err := sdb.AddMemberByInvite(ctx, server.InviteCode, profileB.Email); err != nil {
		t.Fatal(err)
	}
	view, err = aServerH.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(view.Members) != 2 {
		t.Fatalf("members after B joins = %d, want 2", len(view.Members))
	}

	memberA := findMember(view, profileA.ID)
	memberB := findMember(view, profileB.ID)
	if err := aServerH.ChangeMemberRole(ctx, memberB.ID, models.RoleModerator); err != nil {
		t.Fatalf("A promoting B = %v, want nil", err)
	}

	bServerH, err := sdb.GetServerH(ctx, server.ID, bH)
	if err != nil {
		t.Fatal(err)
	}
	if err := bServerH.ChangeMemberRole(ctx, memberA.ID, models.RoleGuest); !errors.Is(err, models.ErrPermDenied) {
		t.Fatalf("B demoting A = %v, want ErrPermDenied", err)
	}

	if err := bServerH.Delete(ctx); !errors.Is(err, models.ErrPermDenied) {
		t.Fatalf("B deleting server = %v, want ErrPermDenied", err)
	}
	if err := aServerH.Delete(ctx); err != nil {
		t.Fatalf("A deleting server = %v, want nil", err)
	}
	if _, err := sdb.GetServerH(ctx, server.ID, aH); !errors.Is(err, models.ErrServerNotFound) {
		t.Fatalf("GetServerH(deleted, A) = %v, want ErrServerNotFound", err)
	}
	if _, err := sdb.GetServerH(ctx, server.ID, bH); !errors.Is(err, models.ErrServerNotFound) {
		t.Fatalf("GetServerH(deleted, B) = %v, want ErrServerNotFound", err)
	}
}
