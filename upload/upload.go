// Package upload implements the chunked upload protocol: a payload is
// split into bounded byte ranges, sent strictly in order, and sealed
// with a terminal finish request.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
)

const DefaultChunkSize = 512 * 1024

var (
	// ErrChunkUploadFailed aborts the remaining chunks of a blob.
	ErrChunkUploadFailed = errors.New("chunk upload failed")
	// ErrUploadFinalizationFailed reports a failed finish request.
	ErrUploadFinalizationFailed = errors.New("upload finalization failed")
)

// Stats summarizes one completed answer upload.
type Stats struct {
	Chunks      int
	BlobBytes   int
	DNSTimeMs   float64
	TLSTimeMs   float64
	TTFBMs      float64
	TotalTimeMs float64
}

// AnswerUploader delivers one recorded answer per Upload call. Chunks are
// sent sequentially: chunk n+1 is not sent until chunk n is acknowledged,
// so the server can append blindly without reordering.
type AnswerUploader struct {
	client    *TracedClient
	baseURL   string
	chunkSize int
}

func NewAnswerUploader(client *TracedClient, baseURL string, chunkSize int) *AnswerUploader {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &AnswerUploader{client: client, baseURL: baseURL, chunkSize: chunkSize}
}

// Upload sends blob under fileID and returns the server transcription
// from the finish response. The transcription may be blank; deciding
// what blank means is the caller's business.
func (u *AnswerUploader) Upload(ctx context.Context, blob []byte, fileID string) (string, Stats, error) {
	stats := Stats{BlobBytes: len(blob)}

	for offset, chunkNumber := 0, 1; offset < len(blob); chunkNumber++ {
		end := min(offset+u.chunkSize, len(blob))
		if err := u.sendChunk(ctx, fileID, chunkNumber, blob[offset:end], &stats); err != nil {
			return "", stats, err
		}
		stats.Chunks++
		offset = end
	}

	transcription, err := u.finish(ctx, fileID, &stats)
	return transcription, stats, err
}

func (u *AnswerUploader) sendChunk(ctx context.Context, fileID string, chunkNumber int, chunk []byte, stats *Stats) error {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	writer.WriteField("file_id", fileID)
	writer.WriteField("chunk_number", strconv.Itoa(chunkNumber))
	part, err := writer.CreateFormFile("audio_chunk", fmt.Sprintf("chunk_%d.wav", chunkNumber))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrChunkUploadFailed, err)
	}
	if _, err := part.Write(chunk); err != nil {
		return fmt.Errorf("%w: %v", ErrChunkUploadFailed, err)
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, "POST", u.baseURL+"/upload_audio_chunk", &body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrChunkUploadFailed, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := u.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: chunk %d: %v", ErrChunkUploadFailed, chunkNumber, err)
	}
	stats.accumulate(resp.Metrics)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: chunk %d: status %d", ErrChunkUploadFailed, chunkNumber, resp.StatusCode)
	}
	var ack struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(resp.Body, &ack); err != nil {
		return fmt.Errorf("%w: chunk %d: %v", ErrChunkUploadFailed, chunkNumber, err)
	}
	if !ack.Success {
		return fmt.Errorf("%w: chunk %d: %s", ErrChunkUploadFailed, chunkNumber, ack.Error)
	}
	return nil
}

func (u *AnswerUploader) finish(ctx context.Context, fileID string, stats *Stats) (string, error) {
	payload, _ := json.Marshal(map[string]string{"file_id": fileID})
	req, err := http.NewRequestWithContext(ctx, "POST", u.baseURL+"/finish_audio_upload", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFinalizationFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := u.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFinalizationFailed, err)
	}
	stats.accumulate(resp.Metrics)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrUploadFinalizationFailed, resp.StatusCode)
	}
	var result struct {
		Transcription string `json:"transcription"`
		Error         string `json:"error"`
	}
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFinalizationFailed, err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("%w: %s", ErrUploadFinalizationFailed, result.Error)
	}
	return result.Transcription, nil
}

func (s *Stats) accumulate(m *NetworkMetrics) {
	if m == nil {
		return
	}
	s.DNSTimeMs += float64(m.DNS.Milliseconds())
	s.TLSTimeMs += float64(m.TLS.Milliseconds())
	s.TTFBMs += float64(m.TTFB.Milliseconds())
	s.TotalTimeMs += float64(m.Sum().Milliseconds())
}
