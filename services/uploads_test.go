package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paper-portal/models"
)

func pdfReader() io.Reader {
	return bytes.NewReader([]byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n%%EOF\n"))
}

func TestUploadStoresFile(t *testing.T) {
	f := newFixture(t)
	svc := f.services()
	ctx := context.Background()
	owner := f.session(t, f.owner)

	res, err := svc.papers.Create(ctx, owner, f.draftInput())
	require.NoError(t, err)
	id := res.Paper.ID

	paper, err := svc.uploads.Save(ctx, owner, id, "../../Artigo Final.PDF", pdfReader())
	require.NoError(t, err)
	assert.Equal(t, "Artigo Final.PDF", paper.FileName)
	assert.True(t, paper.HasFile())
	assert.True(t, strings.HasPrefix(paper.FilePath, "papers/"+f.event.ID+"/"+id+"/"))
	assert.True(t, strings.HasSuffix(paper.FilePath, ".pdf"))
	assert.Equal(t, "http://files.test/"+paper.FilePath, paper.FileURL)

	data, ok := svc.store.Get(paper.FilePath)
	require.True(t, ok)
	assert.Equal(t, paper.FileSize, int64(len(data)))

	oldKey := paper.FilePath
	replaced, err := svc.uploads.Save(ctx, owner, id, "v2.pdf", pdfReader())
	require.NoError(t, err)
	assert.NotEqual(t, oldKey, replaced.FilePath)
	_, ok = svc.store.Get(oldKey)
	assert.False(t, ok, "replaced file is removed")
	assert.Equal(t, 1, svc.store.Len())
}

func TestUploadRejectsInvalidFiles(t *testing.T) {
	f := newFixture(t)
	svc := f.services()
	ctx := context.Background()
	owner := f.session(t, f.owner)

	res, err := svc.papers.Create(ctx, owner, f.draftInput())
	require.NoError(t, err)
	id := res.Paper.ID

	tests := []struct {
		name     string
		filename string
		body     io.Reader
		message  string
	}{
		{"extension not allowed", "paper.exe", pdfReader(), "file type not allowed"},
		{"no extension", "paper", pdfReader(), "file type not allowed"},
		{"empty file", "paper.pdf", strings.NewReader(""), "file is empty"},
		{"content mismatch", "paper.pdf", strings.NewReader("just some plain text"), "does not match extension"},
		{"pdf named docx", "paper.docx", pdfReader(), "does not match extension"},
		{"too large", "paper.pdf", io.MultiReader(pdfReader(), bytes.NewReader(make([]byte, 2<<20))), "maximum size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.uploads.Save(ctx, owner, id, tt.filename, tt.body)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields["file"], tt.message)
		})
	}
	assert.Zero(t, svc.store.Len())
	assert.Empty(t, f.paperFile(t, id))
}

func TestUploadUsesFileFieldLimits(t *testing.T) {
	f := newFixture(t)
	svc := f.services()
	ctx := context.Background()
	owner := f.session(t, f.owner)
	limit := int64(16)
	f.addField(t, models.EventField{Name: "manuscript", Label: "Texto", FieldType: models.FieldFile, Required: true, MaxFileSize: &limit, AllowedFileTypes: "pdf"})

	res, err := svc.papers.Create(ctx, owner, f.draftInput())
	require.NoError(t, err)

	_, err = svc.uploads.Save(ctx, owner, res.Paper.ID, "paper.pdf", pdfReader())
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "file exceeds the maximum size of 16 bytes", verr.Fields["file"])
}

func TestUploadStorageFailureKeepsPaper(t *testing.T) {
	f := newFixture(t)
	svc := f.services()
	ctx := context.Background()
	owner := f.session(t, f.owner)

	res, err := svc.papers.Create(ctx, owner, f.draftInput())
	require.NoError(t, err)
	id := res.Paper.ID

	svc.store.FailPut = errors.New("bucket unavailable")
	_, err = svc.uploads.Save(ctx, owner, id, "paper.pdf", pdfReader())
	assert.ErrorIs(t, err, ErrStorage)
	assert.Empty(t, f.paperFile(t, id))

	// ohne Datei bleibt die Einreichung blockiert, wenn das Event eine verlangt
	f.addField(t, models.EventField{Name: "manuscript", Label: "Texto", FieldType: models.FieldFile})
	svc.events.Cache.Invalidate(f.event.ID)
	_, err = svc.papers.Submit(ctx, owner, id, "")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "file")

	svc.store.FailPut = nil
	_, err = svc.uploads.Save(ctx, owner, id, "paper.pdf", pdfReader())
	require.NoError(t, err)
	paper, err := svc.papers.Submit(ctx, owner, id, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, paper.Status)
}

func TestUploadAccess(t *testing.T) {
	f := newFixture(t)
	svc := f.services()
	ctx := context.Background()
	owner := f.session(t, f.owner)

	res, err := svc.papers.Create(ctx, owner, f.draftInput())
	require.NoError(t, err)
	id := res.Paper.ID

	_, err = svc.uploads.Save(ctx, f.session(t, f.other), id, "paper.pdf", pdfReader())
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.uploads.Save(ctx, nil, id, "paper.pdf", pdfReader())
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = svc.uploads.Save(ctx, owner, "missing", "paper.pdf", pdfReader())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.papers.Submit(ctx, owner, id, "")
	require.NoError(t, err)
	_, err = svc.papers.ChangeStatus(ctx, f.session(t, f.admin), id, models.StatusUnderReview, "")
	require.NoError(t, err)
	_, err = svc.uploads.Save(ctx, owner, id, "paper.pdf", pdfReader())
	assert.ErrorIs(t, err, ErrForbidden, "no uploads once the paper is under review")
	assert.Zero(t, svc.store.Len())
}
