package users

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/mediaurl"
	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/models"
)

type recordingPersister struct {
	mu    sync.Mutex
	calls int
	users []models.User
}

func (p *recordingPersister) SaveUsers(_ context.Context, users []models.User) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.users = users
	return nil
}

// fakePictures tracks blob owners by media id.
type fakePictures struct {
	mu       sync.Mutex
	owners   map[string]string
	stored   []string
	released []string
	err      error
}

func (f *fakePictures) StoreDataURL(_ context.Context, ownerID, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	blobID := fmt.Sprintf("%s-%d", ownerID, len(f.stored)+1)
	f.owners[blobID] = ownerID
	u := mediaurl.Blob("", blobID)
	f.stored = append(f.stored, u)
	return u, nil
}

func (f *fakePictures) Owns(_ context.Context, ownerID, pictureURL string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	blobID, ok := mediaurl.ParseBlobID(pictureURL)
	return ok && f.owners[blobID] == ownerID
}

func (f *fakePictures) Release(_ context.Context, ownerID, pictureURL string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	blobID, ok := mediaurl.ParseBlobID(pictureURL)
	if !ok || f.owners[blobID] != ownerID {
		return
	}
	delete(f.owners, blobID)
	f.released = append(f.released, pictureURL)
}

func seedUsers() []models.User {
	return []models.User{
		{ID: "u-john", Name: "John Doe", Username: "jdoe42", Password: "12345", Pronouns: "he/him"},
		{ID: "u-jane", Name: "Jane Doe", Username: "janedoe", Password: "919191", Pronouns: "she/her"},
	}
}

func newTestDirectory(t *testing.T) (*Directory, *recordingPersister, *fakePictures) {
	t.Helper()
	persister := &recordingPersister{}
	pictures := &fakePictures{owners: map[string]string{"abc": "u-jane", "xyz": "u-john"}}
	d := NewDirectory(seedUsers(), Options{
		Persister:         persister,
		Pictures:          pictures,
		TrustedImageHosts: []string{"images.pokemontcg.io"},
		MediaBaseURL:      "https://decks.example.com",
	})
	d.now = func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }
	return d, persister, pictures
}

func strPtr(s string) *string { return &s }

func TestAuthenticate(t *testing.T) {
	d, _, _ := newTestDirectory(t)

	u, err := d.Authenticate("jdoe42", "12345")
	require.NoError(t, err)
	assert.Equal(t, "John Doe", u.Name)

	_, err = d.Authenticate("jdoe42", "wrong")
	assert.ErrorIs(t, err, ErrAuthFailed)
	_, err = d.Authenticate("JDOE42", "12345")
	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestFindByUsername(t *testing.T) {
	d, _, _ := newTestDirectory(t)

	u, err := d.FindByUsername("janedoe")
	require.NoError(t, err)
	assert.Equal(t, "u-jane", u.ID)

	_, err = d.FindByUsername("nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegisterThenAuthenticate(t *testing.T) {
	d, persister, _ := newTestDirectory(t)
	ctx := context.Background()

	u, err := d.Register(ctx, "New User", "newuser", "pass1")
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "newuser", u.Username)
	assert.Empty(t, u.ProfilePicture)
	assert.Equal(t, d.now(), u.CreatedAt)

	got, err := d.Authenticate("newuser", "pass1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = d.Register(ctx, "Other", "newuser", "pass2")
	assert.ErrorIs(t, err, ErrDuplicateUsername)

	assert.Equal(t, 1, persister.calls)
	require.Len(t, persister.users, 3)
	assert.Equal(t, "newuser", persister.users[2].Username)
}

func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		name     string
		fullName string
		username string
		password string
	}{
		{name: "missing_name", fullName: " ", username: "someone", password: "pass1"},
		{name: "short_username", fullName: "Someone", username: "ab", password: "pass1"},
		{name: "short_password", fullName: "Someone", username: "someone", password: "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _, _ := newTestDirectory(t)
			_, err := d.Register(context.Background(), tt.fullName, tt.username, tt.password)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Equal(t, 2, d.Len())
		})
	}
}

func TestUpdateProfilePartial(t *testing.T) {
	d, _, _ := newTestDirectory(t)

	u, err := d.UpdateProfile(context.Background(), "u-john", ProfileUpdate{Description: strPtr("Fire decks only")})
	require.NoError(t, err)
	assert.Equal(t, "Fire decks only", u.Description)
	assert.Equal(t, "John Doe", u.Name)
	assert.Equal(t, "he/him", u.Pronouns)
	assert.Equal(t, "12345", u.Password)
}

func TestUpdateProfileUsernameUniqueness(t *testing.T) {
	d, _, _ := newTestDirectory(t)
	ctx := context.Background()

	_, err := d.UpdateProfile(ctx, "u-john", ProfileUpdate{Username: strPtr("janedoe")})
	assert.ErrorIs(t, err, ErrDuplicateUsername)

	u, err := d.UpdateProfile(ctx, "u-john", ProfileUpdate{Username: strPtr("jdoe42")})
	require.NoError(t, err)
	assert.Equal(t, "jdoe42", u.Username)

	_, err = d.UpdateProfile(ctx, "missing", ProfileUpdate{Name: strPtr("X")})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateProfilePicture(t *testing.T) {
	tests := []struct {
		name    string
		picture string
		want    string
		wantErr error
	}{
		{name: "trusted_host", picture: "https://images.pokemontcg.io/sm1/1.png", want: "https://images.pokemontcg.io/sm1/1.png"},
		{name: "own_media_absolute", picture: "https://decks.example.com/media/abc", want: "https://decks.example.com/media/abc"},
		{name: "own_media_relative", picture: "/media/abc", want: "/media/abc"},
		{name: "other_users_media", picture: "/media/xyz", wantErr: ErrUntrustedPicture},
		{name: "unknown_media", picture: "https://decks.example.com/media/nope", wantErr: ErrUntrustedPicture},
		{name: "untrusted_host", picture: "https://evil.example.com/a.png", wantErr: ErrUntrustedPicture},
		{name: "not_a_url", picture: "javascript:alert(1)", wantErr: ErrInvalidInput},
		{name: "clear", picture: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _, _ := newTestDirectory(t)
			u, err := d.UpdateProfile(context.Background(), "u-jane", ProfileUpdate{ProfilePicture: strPtr(tt.picture)})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, u.ProfilePicture)
		})
	}
}

func TestUpdateProfileDataURLReplacesPrevious(t *testing.T) {
	d, _, pictures := newTestDirectory(t)
	ctx := context.Background()

	first, err := d.UpdateProfile(ctx, "u-john", ProfileUpdate{ProfilePicture: strPtr("data:image/png;base64,AAAA")})
	require.NoError(t, err)
	assert.Equal(t, "/media/u-john-1", first.ProfilePicture)

	second, err := d.UpdateProfile(ctx, "u-john", ProfileUpdate{ProfilePicture: strPtr("data:image/png;base64,BBBB")})
	require.NoError(t, err)
	assert.Equal(t, "/media/u-john-2", second.ProfilePicture)
	assert.Equal(t, []string{"/media/u-john-1"}, pictures.released)
}

func TestUpdateProfileCannotAdoptAnotherUsersPicture(t *testing.T) {
	d, _, pictures := newTestDirectory(t)
	ctx := context.Background()

	john, err := d.UpdateProfile(ctx, "u-john", ProfileUpdate{ProfilePicture: strPtr("data:image/png;base64,AAAA")})
	require.NoError(t, err)

	_, err = d.UpdateProfile(ctx, "u-jane", ProfileUpdate{ProfilePicture: strPtr(john.ProfilePicture)})
	assert.ErrorIs(t, err, ErrUntrustedPicture)

	_, err = d.UpdateProfile(ctx, "u-jane", ProfileUpdate{ProfilePicture: strPtr("")})
	require.NoError(t, err)
	assert.Empty(t, pictures.released)
	assert.True(t, pictures.Owns(ctx, "u-john", john.ProfilePicture))

	got, err := d.Get("u-john")
	require.NoError(t, err)
	assert.Equal(t, john.ProfilePicture, got.ProfilePicture)
}

func TestUpdateProfileReleasesUploadOnFailure(t *testing.T) {
	d, _, pictures := newTestDirectory(t)

	_, err := d.UpdateProfile(context.Background(), "u-john", ProfileUpdate{
		Username:       strPtr("janedoe"),
		ProfilePicture: strPtr("data:image/png;base64,AAAA"),
	})
	assert.ErrorIs(t, err, ErrDuplicateUsername)
	assert.Equal(t, []string{"/media/u-john-1"}, pictures.released)

	u, err := d.Get("u-john")
	require.NoError(t, err)
	assert.Empty(t, u.ProfilePicture)
}

func TestUpdateProfilePictureStoreError(t *testing.T) {
	d, persister, pictures := newTestDirectory(t)
	pictures.err = errors.New("bad image")

	_, err := d.UpdateProfile(context.Background(), "u-john", ProfileUpdate{ProfilePicture: strPtr("data:image/png;base64,AAAA")})
	require.Error(t, err)
	assert.Equal(t, 0, persister.calls)
}

func TestChangePassword(t *testing.T) {
	d, _, _ := newTestDirectory(t)
	ctx := context.Background()

	assert.ErrorIs(t, d.ChangePassword(ctx, "u-john", "wrong", "newpass"), ErrWrongPassword)
	assert.ErrorIs(t, d.ChangePassword(ctx, "u-john", "12345", "abc"), ErrInvalidInput)
	assert.ErrorIs(t, d.ChangePassword(ctx, "missing", "12345", "newpass"), ErrNotFound)

	require.NoError(t, d.ChangePassword(ctx, "u-john", "12345", "newpass"))
	_, err := d.Authenticate("jdoe42", "12345")
	assert.ErrorIs(t, err, ErrAuthFailed)
	_, err = d.Authenticate("jdoe42", "newpass")
	assert.NoError(t, err)
}

func TestNewDirectoryAssignsMissingIDs(t *testing.T) {
	d := NewDirectory([]models.User{{Username: "a"}, {ID: "x", Username: "b"}, {ID: "x", Username: "c"}}, Options{})

	users := d.Snapshot()
	require.Len(t, users, 2)
	assert.NotEmpty(t, users[0].ID)
	assert.Equal(t, "b", users[1].Username)
}

func TestConcurrentRegister(t *testing.T) {
	d, _, _ := newTestDirectory(t)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := d.Register(context.Background(), "Racer", "racer", "pass1"); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, 3, d.Len())
}
