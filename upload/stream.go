package upload

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"sync"
)

// StreamUploader pushes continuous-recording segments to the server.
// Delivery is best-effort and off the interview's control path: a failed
// or dropped segment never affects the question/answer loop. Segments
// that do go out are sent one at a time, in the order received.
type StreamUploader struct {
	client  *TracedClient
	baseURL string

	// OnSent and OnError report per-segment outcomes; both optional.
	OnSent  func(seq, size int)
	OnError func(seq int, err error)

	queue    chan streamSegment
	done     chan struct{}
	mu       sync.Mutex
	finished bool
}

type streamSegment struct {
	seq  int
	data []byte
}

const streamQueueDepth = 16

func NewStreamUploader(client *TracedClient, baseURL string) *StreamUploader {
	s := &StreamUploader{
		client:  client,
		baseURL: baseURL,
		queue:   make(chan streamSegment, streamQueueDepth),
		done:    make(chan struct{}),
	}
	go s.loop()
	return s
}

// Send enqueues a segment. It never blocks: if the queue is full the
// segment is dropped, which the protocol tolerates. The enqueue happens
// under the same lock that closes the queue, so Send and Finish are safe
// to race.
func (s *StreamUploader) Send(seq int, data []byte) {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	dropped := false
	select {
	case s.queue <- streamSegment{seq: seq, data: data}:
	default:
		dropped = true
	}
	s.mu.Unlock()

	if dropped && s.OnError != nil {
		s.OnError(seq, fmt.Errorf("stream queue full, segment dropped"))
	}
}

func (s *StreamUploader) loop() {
	defer close(s.done)
	for seg := range s.queue {
		if err := s.sendSegment(seg); err != nil {
			if s.OnError != nil {
				s.OnError(seg.seq, err)
			}
			continue
		}
		if s.OnSent != nil {
			s.OnSent(seg.seq, len(seg.data))
		}
	}
}

func (s *StreamUploader) sendSegment(seg streamSegment) error {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("video_chunk", fmt.Sprintf("chunk_%d.flac", seg.seq))
	if err != nil {
		return err
	}
	if _, err := part.Write(seg.data); err != nil {
		return err
	}
	writer.WriteField("chunk_number", strconv.Itoa(seg.seq))
	writer.Close()

	req, err := http.NewRequest("POST", s.baseURL+"/upload_video_chunk", &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

// Finish drains queued segments and signals the server to assemble the
// recording. Safe to call once all segments have been Sent; later Sends
// are discarded.
func (s *StreamUploader) Finish(ctx context.Context) error {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		<-s.done
		return nil
	}
	s.finished = true
	close(s.queue)
	s.mu.Unlock()

	<-s.done

	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/finish_video_upload", nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("finish_video_upload: status %d", resp.StatusCode)
	}
	return nil
}
