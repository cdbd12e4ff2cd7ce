package fleet

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/screenfleet/screenfleet/internal/api/http/dto"
	"github.com/screenfleet/screenfleet/internal/screen"
)

const DefaultTimeout = 5 * time.Second

// Screenshot is a decoded screenshot result. FromCache is set when the
// agent answered with the no-change sentinel and the image is the client's
// previously decoded frame; callers never see a bare sentinel.
type Screenshot struct {
	Image            []byte
	Screen           screen.Screen
	ScreensAvailable int
	FromCache        bool
}

// Client is a typed caller for one agent's HTTP surface. Every method fails
// soft: network and protocol errors come back as error values so a poll
// loop can treat each agent independently.
type Client struct {
	baseURL string
	token   string
	http    *http.Client

	mu         sync.Mutex
	lastFrames map[screen.Index]*Screenshot
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    baseURL,
		token:      token,
		http:       &http.Client{Timeout: timeout},
		lastFrames: make(map[screen.Index]*Screenshot),
	}
}

func (c *Client) Status() (*dto.StatusResponse, error) {
	var resp dto.StatusResponse
	if err := c.get("/status", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Screens() ([]screen.Screen, error) {
	var resp dto.ScreensResponse
	if err := c.get("/screens", &resp); err != nil {
		return nil, err
	}
	return resp.Screens, nil
}

// Screenshot fetches a frame for the given screen. A no-change answer is
// resolved against the last decoded frame for that screen.
func (c *Client) Screenshot(idx screen.Index) (*Screenshot, error) {
	var resp dto.ScreenshotResponse
	if err := c.get(fmt.Sprintf("/screenshot?screen=%d", idx), &resp); err != nil {
		return nil, err
	}

	if resp.NoChange {
		c.mu.Lock()
		cached := c.lastFrames[idx]
		c.mu.Unlock()
		if cached == nil {
			return nil, fmt.Errorf("agent reported no change but no frame is cached for screen %s", idx)
		}
		return &Screenshot{
			Image:            cached.Image,
			Screen:           cached.Screen,
			ScreensAvailable: cached.ScreensAvailable,
			FromCache:        true,
		}, nil
	}

	return c.decodeFrame(idx, &resp)
}

// ScreenshotByIndex hits the path form of the endpoint, which never answers
// with the sentinel.
func (c *Client) ScreenshotByIndex(idx screen.Index) (*Screenshot, error) {
	var resp dto.ScreenshotResponse
	if err := c.get(fmt.Sprintf("/screenshot/%d", idx), &resp); err != nil {
		return nil, err
	}
	return c.decodeFrame(idx, &resp)
}

func (c *Client) Exec(req dto.ExecRequest) (*dto.ExecResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal exec request: %w", err)
	}

	httpReq, err := http.NewRequest(http.MethodPost, c.baseURL+"/exec", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build exec request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.setAuth(httpReq)

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("exec request: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, agentError(httpResp)
	}

	var resp dto.ExecResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode exec response: %w", err)
	}
	return &resp, nil
}

func (c *Client) decodeFrame(idx screen.Index, resp *dto.ScreenshotResponse) (*Screenshot, error) {
	if resp.Image == "" {
		return nil, fmt.Errorf("no image in response")
	}
	raw, err := base64.StdEncoding.DecodeString(resp.Image)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	shot := &Screenshot{
		Image:            raw,
		ScreensAvailable: resp.ScreensAvailable,
	}
	if resp.Screen != nil {
		shot.Screen = *resp.Screen
	}

	c.mu.Lock()
	c.lastFrames[idx] = shot
	c.mu.Unlock()

	return shot, nil
}

func (c *Client) get(path string, out any) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	c.setAuth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return agentError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) setAuth(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// agentError extracts the agent's error body when there is one, so the
// registry records a usable message.
func agentError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var e dto.ErrorResponse
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return fmt.Errorf("agent returned %d: %s", resp.StatusCode, e.Error)
	}
	return fmt.Errorf("agent returned %d", resp.StatusCode)
}
