package interview

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"viva/upload"
)

// ErrServerError reports a malformed or error response from a
// question-progression endpoint. Unlike upload failures it is not
// retried; progression halts and the error is shown to the user.
var ErrServerError = errors.New("server error")

// Client talks to the interview server's question-progression endpoints.
type Client struct {
	http    *upload.TracedClient
	baseURL string
}

func NewClient(httpClient *upload.TracedClient, baseURL string) *Client {
	return &Client{http: httpClient, baseURL: strings.TrimRight(baseURL, "/")}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// FormSubmission carries the candidate's setup form. The file paths are
// optional; when set, the files are attached to the request.
type FormSubmission struct {
	Board   string
	Grade   string
	Subject string
	Country string

	JobDescriptionPath string
	ResumePath         string
}

// SubmitForm registers the candidate with the server. Server-side
// validation failures come back as a joined error string.
func (c *Client) SubmitForm(ctx context.Context, form FormSubmission) error {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	writer.WriteField("board_name", form.Board)
	writer.WriteField("grade", form.Grade)
	writer.WriteField("subject_name", form.Subject)
	writer.WriteField("country_name", form.Country)

	for _, attach := range []struct {
		field, path string
	}{
		{"job_description", form.JobDescriptionPath},
		{"resume", form.ResumePath},
	} {
		if attach.path == "" {
			continue
		}
		f, err := os.Open(attach.path)
		if err != nil {
			return fmt.Errorf("open %s: %w", attach.field, err)
		}
		part, err := writer.CreateFormFile(attach.field, filepath.Base(attach.path))
		if err == nil {
			_, err = io.Copy(part, f)
		}
		f.Close()
		if err != nil {
			return fmt.Errorf("attach %s: %w", attach.field, err)
		}
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/submit_form", &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	var result struct {
		Success bool     `json:"success"`
		Errors  []string `json:"errors"`
	}
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return fmt.Errorf("%w: submit_form: %v", ErrServerError, err)
	}
	if !result.Success {
		if len(result.Errors) > 0 {
			return fmt.Errorf("%w: %s", ErrServerError, strings.Join(result.Errors, "; "))
		}
		return fmt.Errorf("%w: submit_form: status %d", ErrServerError, resp.StatusCode)
	}
	return nil
}

// StartInterview fetches the first question.
func (c *Client) StartInterview(ctx context.Context) (*Question, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/start_interview", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	var result struct {
		Question *Question `json:"question"`
		Error    string    `json:"error"`
	}
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, fmt.Errorf("%w: start_interview: %v", ErrServerError, err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrServerError, result.Error)
	}
	if result.Question == nil {
		return nil, fmt.Errorf("%w: start_interview: no question in response", ErrServerError)
	}
	return result.Question, nil
}

// NextQuestion submits the candidate's answer and returns the server's
// decision: a connecting sentence and the next question, or the
// finished flag.
func (c *Client) NextQuestion(ctx context.Context, candidateAnswer string) (*NextTurn, error) {
	payload, _ := json.Marshal(map[string]string{"candidate_answer": candidateAnswer})
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/next_question", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	var result struct {
		NextTurn
		Error string `json:"error"`
	}
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, fmt.Errorf("%w: next_question: %v", ErrServerError, err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrServerError, result.Error)
	}
	if !result.Finished && result.Question == nil {
		return nil, fmt.Errorf("%w: next_question: neither question nor finished flag", ErrServerError)
	}
	return &result.NextTurn, nil
}

// GetQuestions fetches the full graded question list.
func (c *Client) GetQuestions(ctx context.Context) ([]QuestionRecord, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/get_questions", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	var result struct {
		Questions []QuestionRecord `json:"questions"`
		Error     string           `json:"error"`
	}
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, fmt.Errorf("%w: get_questions: %v", ErrServerError, err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrServerError, result.Error)
	}
	return result.Questions, nil
}

// EndInterview submits the fetched question list as the termination
// payload and returns the server's written summary.
func (c *Client) EndInterview(ctx context.Context, records []QuestionRecord) (string, error) {
	payload, _ := json.Marshal(map[string]any{"questions": records})
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/end_interview", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	var result struct {
		Summary string `json:"summary"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return "", fmt.Errorf("%w: end_interview: %v", ErrServerError, err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("%w: %s", ErrServerError, result.Error)
	}
	return result.Summary, nil
}
