package normals

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/klauspost/compress/zstd"

	"etofusion/internal/types"
)

// zstdMagic prefixes every zstd frame.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Snapshot is the offline ingestion artifact: every reference, station and
// monthly normal in one JSON document, usually zstd-compressed.
type Snapshot struct {
	Version     string                       `json:"version"`
	GeneratedAt time.Time                    `json:"generated_at"`
	References  []types.ReferenceLocation    `json:"references"`
	Stations    []types.WeatherStation       `json:"stations"`
	Normals     []types.MonthlyClimateNormal `json:"normals"`
}

// Store validates the snapshot and builds a Store from it.
func (s *Snapshot) Store() (*Store, error) {
	return NewStore(s.References, s.Stations, s.Normals)
}

// LoadSnapshot decodes a snapshot from r. Compressed and plain JSON input are
// both accepted; the zstd frame magic decides.
func LoadSnapshot(r io.Reader) (*Snapshot, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(zstdMagic))
	if err != nil && err != io.EOF {
		return nil, snapshotError("reading snapshot header", err)
	}

	var src io.Reader = br
	if bytes.Equal(head, zstdMagic) {
		dec, err := zstd.NewReader(br, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, snapshotError("creating zstd decoder", err)
		}
		defer dec.Close()
		src = dec
	}

	var snap Snapshot
	if err := json.NewDecoder(src).Decode(&snap); err != nil {
		return nil, snapshotError("decoding snapshot", err)
	}
	return &snap, nil
}

// WriteSnapshot encodes snap as zstd-compressed JSON.
func WriteSnapshot(w io.Writer, snap *Snapshot) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return fmt.Errorf("creating zstd encoder: %w", err)
	}
	if err := json.NewEncoder(enc).Encode(snap); err != nil {
		enc.Close()
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return enc.Close()
}

// LoadFile reads a snapshot from the local filesystem.
func LoadFile(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, snapshotError(fmt.Sprintf("opening %s", path), err)
	}
	defer f.Close()
	return LoadSnapshot(f)
}

// S3Client abstracts S3 object retrieval for testability.
type S3Client interface {
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// LoadS3 reads a snapshot object from S3.
func LoadS3(ctx context.Context, client S3Client, bucket, key string) (*Snapshot, error) {
	body, err := client.GetObject(ctx, bucket, key)
	if err != nil {
		return nil, snapshotError(fmt.Sprintf("fetching s3://%s/%s", bucket, key), err)
	}
	defer body.Close()
	return LoadSnapshot(body)
}

// S3Uploader abstracts S3 object upload for testability.
type S3Uploader interface {
	PutObject(ctx context.Context, bucket, key string, body []byte) error
}

// PublishS3 encodes snap and uploads it to bucket/key.
func PublishS3(ctx context.Context, client S3Uploader, bucket, key string, snap *Snapshot) error {
	var buf bytes.Buffer
	if err := WriteSnapshot(&buf, snap); err != nil {
		return err
	}
	if err := client.PutObject(ctx, bucket, key, buf.Bytes()); err != nil {
		return fmt.Errorf("uploading s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}

func snapshotError(msg string, err error) error {
	return types.NewAppError(types.ErrCodeInternalSnapshot, fmt.Sprintf("%s: %v", msg, err), err)
}
