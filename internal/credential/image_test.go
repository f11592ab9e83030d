package credential

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

type recordingUploader struct {
	credential string
	png        []byte
}

func (u *recordingUploader) UploadQRImage(_ context.Context, credential string, png []byte) (string, error) {
	u.credential = credential
	u.png = png
	return "https://bucket/qrcodes/" + credential + ".png", nil
}

func TestRenderProducesPNG(t *testing.T) {
	png, err := Render("some-credential-value")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, pngMagic))
}

func TestStoreRendersAndUploads(t *testing.T) {
	uploader := &recordingUploader{}
	store := NewImageStore(uploader)

	url, err := store.Store(context.Background(), "cred-abc")
	require.NoError(t, err)
	assert.Equal(t, "https://bucket/qrcodes/cred-abc.png", url)
	assert.Equal(t, "cred-abc", uploader.credential)
	assert.True(t, bytes.HasPrefix(uploader.png, pngMagic))
}
