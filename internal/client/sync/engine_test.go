package sync

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/closetapp/closet-sync/internal/client/config"
	"github.com/closetapp/closet-sync/internal/client/store"
	"github.com/closetapp/closet-sync/internal/client/tracker"
	"github.com/closetapp/closet-sync/internal/logging"
	"github.com/closetapp/closet-sync/internal/lww"
	"github.com/closetapp/closet-sync/internal/syncwire"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI is an in-process stand-in for the server, implementing the same
// LWW push semantics the sync endpoint does.
type fakeAPI struct {
	mu      sync.Mutex
	account string
	version int64
	tables  map[string]map[string]*syncwire.Record
	blobs   map[string][]byte

	pullCalls int
	pushCalls int
	pullGate  chan struct{} // when set, Pull blocks until the channel closes
	pullErr   error
}

func newFakeAPI(account string) *fakeAPI {
	return &fakeAPI{
		account: account,
		tables:  map[string]map[string]*syncwire.Record{},
		blobs:   map[string][]byte{},
	}
}

func (f *fakeAPI) table(name string) map[string]*syncwire.Record {
	if f.tables[name] == nil {
		f.tables[name] = map[string]*syncwire.Record{}
	}
	return f.tables[name]
}

func (f *fakeAPI) seed(table string, rec *syncwire.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.table(table)[rec.ID] = rec
	f.version++
}

func (f *fakeAPI) Pull(ctx context.Context, since int64) (*syncwire.PullResponse, error) {
	if f.pullGate != nil {
		<-f.pullGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pullCalls++
	if f.pullErr != nil {
		return nil, f.pullErr
	}

	resp := &syncwire.PullResponse{Success: true, Version: f.version,
		Changes: map[string]syncwire.TableChanges{}}
	if since >= f.version {
		for _, t := range syncwire.Tables {
			resp.Changes[t] = syncwire.TableChanges{Upserts: []*syncwire.Record{}, Deletes: []string{}}
		}
		return resp, nil
	}
	for _, t := range syncwire.Tables {
		ch := syncwire.TableChanges{Upserts: []*syncwire.Record{}, Deletes: []string{}}
		for _, rec := range f.table(t) {
			if rec.Deleted {
				ch.Deletes = append(ch.Deletes, rec.ID)
			} else {
				ch.Upserts = append(ch.Upserts, rec.Clone())
			}
		}
		resp.Changes[t] = ch
	}
	return resp, nil
}

func (f *fakeAPI) Push(ctx context.Context, req *syncwire.PushRequest) (*syncwire.PushResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushCalls++

	resp := &syncwire.PushResponse{Success: true}
	for _, entry := range req.Changes {
		table := f.table(entry.Table)
		existing := table[entry.RecordID]

		var incoming *syncwire.Record
		if entry.Operation == syncwire.OpDelete {
			if existing == nil {
				continue
			}
			incoming = existing.Clone()
			incoming.SetDeleted(entry.Timestamp)
		} else {
			incoming = entry.Payload
		}
		if incoming == nil {
			continue
		}
		d := lww.Merge(existing, incoming, false)
		if !d.Accept {
			resp.ConflictIDs = append(resp.ConflictIDs, entry.RecordID)
			continue
		}
		table[entry.RecordID] = incoming.Clone()
	}
	f.version++
	resp.Version = f.version
	return resp, nil
}

func (f *fakeAPI) PresignUpload(ctx context.Context, req *syncwire.PresignUploadRequest) (*syncwire.PresignUploadResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, exists := f.blobs[req.Hash]
	return &syncwire.PresignUploadResponse{
		Success:       true,
		AlreadyExists: exists,
		ImageRef:      syncwire.ImageRef(f.account, req.Hash),
	}, nil
}

func (f *fakeAPI) UploadImage(ctx context.Context, hash string, data []byte, contentType string) (*syncwire.UploadResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobs[hash] = append([]byte(nil), data...)
	return &syncwire.UploadResponse{Success: true, ImageRef: syncwire.ImageRef(f.account, hash)}, nil
}

func (f *fakeAPI) UploadPresigned(ctx context.Context, url string, data []byte, contentType string) error {
	return nil
}

func (f *fakeAPI) CheckImage(ctx context.Context, hash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.blobs[hash]
	return ok, nil
}

func (f *fakeAPI) DownloadImage(ctx context.Context, ref string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.blobs[syncwire.HashFromRef(ref)]
	if !ok {
		return nil, os.ErrNotExist
	}
	return append([]byte(nil), data...), nil
}

func (f *fakeAPI) DeleteImage(ctx context.Context, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.blobs, hash)
	return nil
}

type device struct {
	engine  *Engine
	store   *store.Store
	tracker *tracker.Tracker
	cfg     *config.Config
}

func newDevice(t *testing.T, api *fakeAPI) *device {
	t.Helper()
	s, err := store.Open(context.Background(), ":memory:", filepath.Join(t.TempDir(), "images"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	tr := tracker.New(s, log)
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.Enabled = true
	cfg.Token = "opaque-session-token"
	cfg.UserID = api.account
	cfg.DebounceQuiet = 20 * time.Millisecond

	return &device{engine: New(cfg, s, tr, api, log), store: s, tracker: tr, cfg: cfg}
}

func wireRecord(t *testing.T, doc map[string]any) *syncwire.Record {
	t.Helper()
	b, err := json.Marshal(doc)
	require.NoError(t, err)
	var r syncwire.Record
	require.NoError(t, json.Unmarshal(b, &r))
	return &r
}

// createLocal simulates the app creating a record: store write + tracked change.
func (d *device) createLocal(t *testing.T, ctx context.Context, table string, rec *syncwire.Record) {
	t.Helper()
	require.NoError(t, d.store.PutRecord(ctx, table, rec))
	require.NoError(t, d.tracker.RecordUpsert(ctx, table, syncwire.OpCreate, rec))
}

func (d *device) updateLocal(t *testing.T, ctx context.Context, table string, rec *syncwire.Record) {
	t.Helper()
	require.NoError(t, d.store.PutRecord(ctx, table, rec))
	require.NoError(t, d.tracker.RecordUpsert(ctx, table, syncwire.OpUpdate, rec))
}

func TestSync_DisabledAndUnauthenticated(t *testing.T) {
	api := newFakeAPI("u1")
	d := newDevice(t, api)

	d.cfg.Enabled = false
	res := d.engine.Sync(context.Background())
	assert.False(t, res.Success)
	assert.Equal(t, "sync is disabled", res.Error)

	d.cfg.Enabled = true
	d.cfg.Token = ""
	res = d.engine.Sync(context.Background())
	assert.False(t, res.Success)
	assert.Equal(t, "not authenticated", res.Error)
	assert.Zero(t, api.pullCalls)
}

func TestSync_SecondCallWhileBusyIsDropped(t *testing.T) {
	api := newFakeAPI("u1")
	gate := make(chan struct{})
	api.pullGate = gate
	d := newDevice(t, api)

	done := make(chan *Result, 1)
	go func() { done <- d.engine.Sync(context.Background()) }()

	// wait until the first pass is inside Pull
	require.Eventually(t, func() bool {
		d.engine.mu.Lock()
		defer d.engine.mu.Unlock()
		return d.engine.syncing
	}, time.Second, time.Millisecond)

	res := d.engine.Sync(context.Background())
	assert.False(t, res.Success)
	assert.Equal(t, "sync already in progress", res.Error)

	close(gate)
	first := <-done
	assert.True(t, first.Success)
}

func TestSync_ExpiredJWTEmitsAuthRequired(t *testing.T) {
	api := newFakeAPI("u1")
	d := newDevice(t, api)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	})
	signed, err := token.SignedString([]byte("k"))
	require.NoError(t, err)
	d.cfg.Token = signed

	var events []EventType
	unsub := d.engine.Subscribe(func(ev Event) { events = append(events, ev.Type) })
	defer unsub()

	res := d.engine.Sync(context.Background())
	assert.False(t, res.Success)
	assert.Contains(t, events, EventAuthRequired)
	assert.Contains(t, events, EventSyncError)
	assert.Zero(t, api.pullCalls, "auth failure must abort before any pull")
}

func TestSync_PullAppliesServerRecordsWithoutTracking(t *testing.T) {
	api := newFakeAPI("u1")
	api.seed(syncwire.TableItems, wireRecord(t, map[string]any{
		"id": "i1", "createdAt": 100, "updatedAt": 100, "name": "Denim jacket"}))
	api.seed(syncwire.TableTrips, wireRecord(t, map[string]any{
		"id": "t1", "createdAt": 100, "updatedAt": 100, "name": "Lisbon"}))

	d := newDevice(t, api)
	ctx := context.Background()
	res := d.engine.Sync(ctx)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 2, res.Pulled)

	got, err := d.store.GetRecord(ctx, syncwire.TableItems, "i1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Denim jacket", got.StringField("name"))

	v, err := d.store.LastSyncVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, api.version, v)

	// applying a pull must not generate outbound changes
	changes, err := d.store.UnsyncedChanges(ctx)
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestSync_Idempotence(t *testing.T) {
	api := newFakeAPI("u1")
	api.seed(syncwire.TableItems, wireRecord(t, map[string]any{
		"id": "i1", "createdAt": 100, "updatedAt": 100, "name": "Scarf"}))

	d := newDevice(t, api)
	ctx := context.Background()
	require.True(t, d.engine.Sync(ctx).Success)
	first, err := d.store.ListRecords(ctx, syncwire.TableItems, true)
	require.NoError(t, err)

	// force a full re-pull of the same response
	require.NoError(t, d.store.SetLastSyncVersion(ctx, 0))
	res := d.engine.Sync(ctx)
	require.True(t, res.Success)
	assert.Zero(t, res.Conflicts)

	second, err := d.store.ListRecords(ctx, syncwire.TableItems, true)
	require.NoError(t, err)
	require.Len(t, second, len(first))
	assert.True(t, first[0].SameContent(second[0]))
}

func TestSync_PushAndCleanup(t *testing.T) {
	api := newFakeAPI("u1")
	d := newDevice(t, api)
	ctx := context.Background()

	d.createLocal(t, ctx, syncwire.TableItems, wireRecord(t, map[string]any{
		"id": "i1", "createdAt": 100, "updatedAt": 100, "name": "Loafers"}))

	res := d.engine.Sync(ctx)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 1, res.Pushed)

	api.mu.Lock()
	srv := api.tables[syncwire.TableItems]["i1"]
	api.mu.Unlock()
	require.NotNil(t, srv)
	assert.Equal(t, "Loafers", srv.StringField("name"))

	// synced entries are garbage-collected at the end of the pass
	n, err := d.store.UnsyncedCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	pending, err := d.store.PendingChanges(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestSync_StaleUpdateConflictsAndRePulls(t *testing.T) {
	api := newFakeAPI("u1")
	api.seed(syncwire.TableItems, wireRecord(t, map[string]any{
		"id": "i1", "createdAt": 100, "updatedAt": 300, "name": "Server edit"}))

	d := newDevice(t, api)
	ctx := context.Background()

	// pretend this device saw the server state already, then edits with an
	// older clock than the server copy
	require.NoError(t, d.store.SetLastSyncVersion(ctx, api.version))
	d.updateLocal(t, ctx, syncwire.TableItems, wireRecord(t, map[string]any{
		"id": "i1", "createdAt": 100, "updatedAt": 200, "name": "Stale local edit"}))

	res := d.engine.Sync(ctx)
	require.True(t, res.Success, res.Error)
	assert.GreaterOrEqual(t, res.Conflicts, 1)

	// the re-pull absorbed the server's resolution
	got, err := d.store.GetRecord(ctx, syncwire.TableItems, "i1")
	require.NoError(t, err)
	assert.Equal(t, "Server edit", got.StringField("name"))
}

func TestConvergence_TwoDevicesSameItem(t *testing.T) {
	api := newFakeAPI("u1")
	api.seed(syncwire.TableItems, wireRecord(t, map[string]any{
		"id": "i1", "createdAt": 100, "updatedAt": 100, "name": "Original"}))

	a := newDevice(t, api)
	b := newDevice(t, api)
	ctx := context.Background()

	require.True(t, a.engine.Sync(ctx).Success)
	require.True(t, b.engine.Sync(ctx).Success)

	// A updates at T, B updates at T+1s
	a.updateLocal(t, ctx, syncwire.TableItems, wireRecord(t, map[string]any{
		"id": "i1", "createdAt": 100, "updatedAt": 5000, "name": "From A"}))
	b.updateLocal(t, ctx, syncwire.TableItems, wireRecord(t, map[string]any{
		"id": "i1", "createdAt": 100, "updatedAt": 6000, "name": "From B"}))

	require.True(t, a.engine.Sync(ctx).Success)
	require.True(t, b.engine.Sync(ctx).Success)
	require.True(t, a.engine.Sync(ctx).Success)

	api.mu.Lock()
	srv := api.tables[syncwire.TableItems]["i1"].Clone()
	api.mu.Unlock()
	assert.Equal(t, "From B", srv.StringField("name"))

	gotA, err := a.store.GetRecord(ctx, syncwire.TableItems, "i1")
	require.NoError(t, err)
	gotB, err := b.store.GetRecord(ctx, syncwire.TableItems, "i1")
	require.NoError(t, err)
	assert.Equal(t, "From B", gotA.StringField("name"))
	assert.Equal(t, "From B", gotB.StringField("name"))
	assert.Equal(t, int64(6000), gotA.Clock())
}

func TestSync_TombstonePropagates(t *testing.T) {
	api := newFakeAPI("u1")
	api.seed(syncwire.TableOutfits, wireRecord(t, map[string]any{
		"id": "o1", "createdAt": 100, "updatedAt": 100, "name": "Beach"}))

	a := newDevice(t, api)
	b := newDevice(t, api)
	ctx := context.Background()

	require.True(t, a.engine.Sync(ctx).Success)
	require.True(t, b.engine.Sync(ctx).Success)

	// A deletes locally
	require.NoError(t, a.store.MarkDeleted(ctx, syncwire.TableOutfits, "o1", 500))
	require.NoError(t, a.tracker.RecordDelete(ctx, syncwire.TableOutfits, "o1", 500))
	require.True(t, a.engine.Sync(ctx).Success)

	require.True(t, b.engine.Sync(ctx).Success)
	live, err := b.store.ListRecords(ctx, syncwire.TableOutfits, false)
	require.NoError(t, err)
	assert.Empty(t, live)
}

func TestSync_ImageUploadThenDownloadOnOtherDevice(t *testing.T) {
	api := newFakeAPI("u1")
	a := newDevice(t, api)
	b := newDevice(t, api)
	ctx := context.Background()

	raw := []byte("jpeg bytes of a linen shirt")
	encoded := base64.StdEncoding.EncodeToString(raw)
	a.createLocal(t, ctx, syncwire.TableItems, wireRecord(t, map[string]any{
		"id": "i1", "createdAt": 100, "updatedAt": 100, "name": "Linen shirt",
		"imageData": encoded}))

	res := a.engine.Sync(ctx)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 1, res.ImagesUploaded)

	got, err := a.store.GetRecord(ctx, syncwire.TableItems, "i1")
	require.NoError(t, err)
	hash := got.StringField("imageHash")
	require.NotEmpty(t, hash)
	assert.Equal(t, syncwire.ImageRef("u1", hash), got.StringField("imageRef"))
	assert.Empty(t, got.StringField("imageData"))

	// second pass pushes the reference rewrite
	require.True(t, a.engine.Sync(ctx).Success)

	res = b.engine.Sync(ctx)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 1, res.ImagesDownloaded)
	assert.True(t, b.store.HasCachedImage(hash))

	data, err := b.store.CachedImage(hash)
	require.NoError(t, err)
	assert.Equal(t, raw, data)
}

func TestSync_ImageDataSurvivesPullWithoutRefs(t *testing.T) {
	api := newFakeAPI("u1")
	d := newDevice(t, api)
	ctx := context.Background()

	// transient bytes the upload phase cannot decode, so they stay put and
	// the test observes the merge behavior alone
	require.NoError(t, d.store.PutRecord(ctx, syncwire.TableItems, wireRecord(t, map[string]any{
		"id": "i1", "createdAt": 100, "updatedAt": 100, "name": "Cardigan",
		"imageData": "not!valid!base64!"})))

	// server pushes a newer copy of the same item, still without imageRef
	api.seed(syncwire.TableItems, wireRecord(t, map[string]any{
		"id": "i1", "createdAt": 100, "updatedAt": 200, "name": "Cardigan (renamed)"}))

	res := d.engine.Sync(ctx)
	require.True(t, res.Success, res.Error)

	got, err := d.store.GetRecord(ctx, syncwire.TableItems, "i1")
	require.NoError(t, err)
	assert.Equal(t, "Cardigan (renamed)", got.StringField("name"))
	assert.NotEmpty(t, got.StringField("imageData"), "local imageData must survive the merge")
}

func TestSync_DedupSecondUploadOfSameBytes(t *testing.T) {
	api := newFakeAPI("u1")
	d := newDevice(t, api)
	ctx := context.Background()

	raw := []byte("same picture twice")
	encoded := base64.StdEncoding.EncodeToString(raw)
	d.createLocal(t, ctx, syncwire.TableItems, wireRecord(t, map[string]any{
		"id": "i1", "createdAt": 100, "updatedAt": 100, "imageData": encoded}))
	d.createLocal(t, ctx, syncwire.TableItems, wireRecord(t, map[string]any{
		"id": "i2", "createdAt": 101, "updatedAt": 101, "imageData": encoded}))

	res := d.engine.Sync(ctx)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 2, res.ImagesUploaded)

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Len(t, api.blobs, 1, "identical bytes are stored once")
}

func TestUploadImageWithRetry_FallsBackToOriginalURL(t *testing.T) {
	api := newFakeAPI("u1")
	d := newDevice(t, api)

	failing := &failingAPI{fakeAPI: api}
	d.engine.api = failing

	ref := d.engine.UploadImageWithRetry(context.Background(), []byte("pic"), "image/png",
		"https://shop.example.com/pic.png")
	assert.Equal(t, "https://shop.example.com/pic.png", ref)
	assert.Equal(t, uploadRetryAttempts, failing.presignCalls)
}

type failingAPI struct {
	*fakeAPI
	presignCalls int
}

func (f *failingAPI) PresignUpload(ctx context.Context, req *syncwire.PresignUploadRequest) (*syncwire.PresignUploadResponse, error) {
	f.presignCalls++
	return nil, os.ErrDeadlineExceeded
}

func TestTriggerDebouncedSync_CoalescesBursts(t *testing.T) {
	api := newFakeAPI("u1")
	d := newDevice(t, api)
	d.cfg.DebounceQuiet = 30 * time.Millisecond

	d.engine.TriggerDebouncedSync()
	d.engine.TriggerDebouncedSync()
	d.engine.TriggerDebouncedSync()

	require.Eventually(t, func() bool {
		api.mu.Lock()
		defer api.mu.Unlock()
		return api.pullCalls == 1
	}, time.Second, 5*time.Millisecond)

	// no further passes fire
	time.Sleep(60 * time.Millisecond)
	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Equal(t, 1, api.pullCalls)
}

func TestAutoSync_DisabledByNonPositiveInterval(t *testing.T) {
	api := newFakeAPI("u1")
	d := newDevice(t, api)
	d.cfg.AutoSyncInterval = 0

	d.engine.StartAutoSync()
	d.engine.StopAutoSync() // must not panic with no timer running

	time.Sleep(20 * time.Millisecond)
	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Zero(t, api.pullCalls)
}
