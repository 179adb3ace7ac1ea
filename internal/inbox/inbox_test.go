package inbox

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AI-WORKERS1729/TempMailServiceCustomDomain/internal/blob"
	"github.com/AI-WORKERS1729/TempMailServiceCustomDomain/internal/email"
	"github.com/AI-WORKERS1729/TempMailServiceCustomDomain/internal/notify"
	"github.com/AI-WORKERS1729/TempMailServiceCustomDomain/internal/store"
	"github.com/AI-WORKERS1729/TempMailServiceCustomDomain/internal/store/jsonstore"
)

type fakeSubmitter struct {
	mu    sync.Mutex
	notes []*notify.Notification
}

func (f *fakeSubmitter) Submit(n *notify.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes = append(f.notes, n)
	return nil
}

type failingStore struct{}

func (failingStore) Append(context.Context, *store.Message) error { return errors.New("disk full") }
func (failingStore) List(context.Context) []store.Message { return []store.Message{} }
func (failingStore) Close() error { return nil }

// flakyBlobs fails attachment writes for the named files.
type flakyBlobs struct {
	blob.Store
	fail map[string]bool
}

func (f flakyBlobs) Put(ctx context.Context, kind blob.Kind, name, contentType string, data []byte) error {
	if kind == blob.KindAttachment && f.fail[name] {
		return errors.New("no space")
	}
	return f.Store.Put(ctx, kind, name, contentType, data)
}

type fixture struct {
	inbox *Inbox
	store *jsonstore.Store
	blobs *blob.FS
	subs  *fakeSubmitter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	st, err := jsonstore.New(filepath.Join(root, "emails.json"))
	require.NoError(t, err)
	bl, err := blob.NewFS(filepath.Join(root, "attachments"), filepath.Join(root, "html_emails"))
	require.NoError(t, err)
	subs := &fakeSubmitter{}

	in := New(st, bl, subs)
	in.now = func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC) }
	return &fixture{inbox: in, store: st, blobs: bl, subs: subs}
}

func TestAcceptFullMessage(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.inbox.Accept(ctx, Envelope{SessionID: "s1", RemoteAddr: "192.0.2.7:5555", TLS: true}, &email.Email{
		From:     "Alice <alice@example.com>",
		To:       []string{"inbox@example.com"},
		Subject:  "Report",
		TextBody: "see attached",
		HtmlBody: "<p>see attached</p>",
		Attachments: []email.Attachment{
			{Filename: "report.pdf", ContentType: "application/pdf", Content: []byte("PDF")},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Alice <alice@example.com>", rec.From)
	assert.Equal(t, "inbox@example.com", rec.To)
	assert.Equal(t, "Report", rec.Subject)
	assert.Equal(t, "see attached", rec.Content)
	assert.Equal(t, "2024-05-06T07:08:09.000Z", rec.Date)
	assert.Equal(t, "192.0.2.7:5555", rec.RemoteAddr)
	assert.True(t, rec.TLS)
	require.Len(t, rec.Attachments, 1)
	assert.Equal(t, rec.ID+"_report.pdf", rec.Attachments[0].Filename)
	assert.Equal(t, rec.ID+"_email.html", rec.HTMLFile)

	data, err := os.ReadFile(f.blobs.Path(blob.KindAttachment, rec.Attachments[0].Filename))
	require.NoError(t, err)
	assert.Equal(t, "PDF", string(data))

	html, err := os.ReadFile(f.blobs.Path(blob.KindHTML, rec.HTMLFile))
	require.NoError(t, err)
	assert.Equal(t, "<p>see attached</p>", string(html))

	stored := f.store.List(ctx)
	require.Len(t, stored, 1)
	assert.Equal(t, *rec, stored[0])

	require.Len(t, f.subs.notes, 1)
	assert.Equal(t, rec.ID, f.subs.notes[0].Message.ID)
	require.Len(t, f.subs.notes[0].Files, 1)
	assert.Equal(t, []byte("PDF"), f.subs.notes[0].Files[0].Content)
}

func TestAcceptDefaultsAndEscapedFallback(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec, err := f.inbox.Accept(context.Background(), Envelope{}, &email.Email{
		TextBody: "a < b & c",
	})
	require.NoError(t, err)

	assert.Equal(t, "Unknown", rec.From)
	assert.Equal(t, "Unknown", rec.To)
	assert.Equal(t, "No Subject", rec.Subject)
	assert.Empty(t, rec.Attachments)
	assert.NotNil(t, rec.Attachments)

	html, err := os.ReadFile(f.blobs.Path(blob.KindHTML, rec.HTMLFile))
	require.NoError(t, err)
	assert.Equal(t, "<pre>a &lt; b &amp; c</pre>", string(html))
}

func TestAcceptHTMLOnlyUsesHTMLAsContent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec, err := f.inbox.Accept(context.Background(), Envelope{}, &email.Email{HtmlBody: "<b>hi</b>"})
	require.NoError(t, err)
	assert.Equal(t, "<b>hi</b>", rec.Content)
}

func TestAcceptAttachmentFailureOmitsReference(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	in := New(f.store, failAllAttachments{f.blobs}, f.subs)
	rec, err := in.Accept(context.Background(), Envelope{}, &email.Email{
		Subject: "x",
		Attachments: []email.Attachment{
			{Filename: "a.txt", Content: []byte("a")},
		},
	})
	require.NoError(t, err)
	assert.Empty(t, rec.Attachments)
	assert.NotEmpty(t, rec.HTMLFile)
	assert.Len(t, f.store.List(context.Background()), 1)
}

type failAllAttachments struct{ blob.Store }

func (f failAllAttachments) Put(ctx context.Context, kind blob.Kind, name, contentType string, data []byte) error {
	if kind == blob.KindAttachment {
		return errors.New("no space")
	}
	return f.Store.Put(ctx, kind, name, contentType, data)
}

func TestAcceptPartialAttachmentFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	frozen := time.UnixMilli(1_700_000_000_000)
	in := New(f.store, flakyBlobs{Store: f.blobs, fail: map[string]bool{"1700000000000_bad.bin": true}}, f.subs)
	in.stamper = store.NewStamperWithClock(func() time.Time { return frozen })

	rec, err := in.Accept(context.Background(), Envelope{}, &email.Email{
		Attachments: []email.Attachment{
			{Filename: "bad.bin", Content: []byte("x")},
			{Filename: "good.bin", Content: []byte("y")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []store.Attachment{{Filename: "1700000000000_good.bin"}}, rec.Attachments)
}

func TestAcceptDuplicateAttachmentNames(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec, err := f.inbox.Accept(context.Background(), Envelope{}, &email.Email{
		Attachments: []email.Attachment{
			{Filename: "same.txt", Content: []byte("1")},
			{Filename: "same.txt", Content: []byte("2")},
		},
	})
	require.NoError(t, err)
	require.Len(t, rec.Attachments, 2)
	assert.NotEqual(t, rec.Attachments[0].Filename, rec.Attachments[1].Filename)
}

func TestAcceptStoreFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	in := New(failingStore{}, f.blobs, f.subs)

	rec, err := in.Accept(context.Background(), Envelope{}, &email.Email{Subject: "lost"})
	require.Error(t, err)
	assert.Nil(t, rec)
	assert.ErrorIs(t, err, store.ErrStoreWriteFailed)
	assert.Empty(t, f.subs.notes, "no notification for an unstored message")
}

func TestAcceptWithoutNotifier(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	in := New(f.store, f.blobs, nil)
	_, err := in.Accept(context.Background(), Envelope{}, &email.Email{})
	require.NoError(t, err)
}

func TestAcceptIDsStrictlyIncrease(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.inbox.Accept(ctx, Envelope{}, &email.Email{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, m := range f.store.List(ctx) {
		assert.False(t, seen[m.ID], "duplicate id %s", m.ID)
		seen[m.ID] = true
	}
	assert.Len(t, seen, 10)
}

func TestWaitReturnsWhenIdle(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, f.inbox.Wait(ctx))
}

func TestRenderHTML(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "<i>x</i>", RenderHTML(&email.Email{HtmlBody: "<i>x</i>", TextBody: "x"}))
	assert.Equal(t, "<pre>&lt;script&gt;</pre>", RenderHTML(&email.Email{TextBody: "<script>"}))
	assert.Equal(t, "<pre></pre>", RenderHTML(&email.Email{}))
}
