package duoplus

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	httpTimeout    = 30 * time.Second
	commandPath    = "/api/v1/cloudPhone/command"
	listPath       = "/api/v1/cloudPhone/list"
	powerPath      = "/api/v1/cloudPhone/power"
	defaultBaseURL = "https://openapi.duoplus.net"
)

// Device status codes reported by the DuoPlus cloud phone API.
const (
	StatusOff         = 0
	StatusOn          = 1
	StatusStopped     = 2
	StatusExpired     = 3
	StatusUnderReview = 4
	StatusStarting    = 10
	StatusConfiguring = 11
	StatusFaulted     = 12
)

var httpClient = &http.Client{Timeout: httpTimeout}

// Client talks to the DuoPlus cloud phone API. Commands are plain ADB
// shell strings executed inside the virtual device.
type Client struct {
	apiKey  string
	baseURL string
}

func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{apiKey: apiKey, baseURL: strings.TrimRight(baseURL, "/")}
}

type apiEnvelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type commandData struct {
	Success bool   `json:"success"`
	Content string `json:"content"`
}

// DeviceInfo is one entry from the cloud phone list endpoint.
type DeviceInfo struct {
	ImageID string `json:"image_id"`
	Name    string `json:"image_name"`
	Status  int    `json:"status"`
}

func (c *Client) jsonRequest(ctx context.Context, method, path string, body interface{}, dest interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("DuoPlus-API-Key", c.apiKey)

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if resp.StatusCode >= 400 {
		return fmt.Errorf("duoplus request failed: status=%d body=%s", resp.StatusCode, string(data))
	}

	if dest != nil {
		return json.Unmarshal(data, dest)
	}
	return nil
}

// Command runs an ADB shell command on the device and returns its output.
func (c *Client) Command(ctx context.Context, deviceID, command string) (string, error) {
	var env apiEnvelope
	payload := map[string]string{"image_id": deviceID, "command": command}
	if err := c.jsonRequest(ctx, http.MethodPost, commandPath, payload, &env); err != nil {
		return "", err
	}
	if env.Code != 200 {
		return "", fmt.Errorf("duoplus command rejected: code=%d msg=%s", env.Code, env.Msg)
	}

	var data commandData
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return "", fmt.Errorf("duoplus command response malformed: %w", err)
		}
	}
	if !data.Success {
		return data.Content, fmt.Errorf("duoplus command did not succeed on device %s", deviceID)
	}
	return data.Content, nil
}

// ListDevices returns the account's cloud phones with their current status.
func (c *Client) ListDevices(ctx context.Context) ([]DeviceInfo, error) {
	var env apiEnvelope
	if err := c.jsonRequest(ctx, http.MethodGet, listPath, nil, &env); err != nil {
		return nil, err
	}
	if env.Code != 200 {
		return nil, fmt.Errorf("duoplus list rejected: code=%d msg=%s", env.Code, env.Msg)
	}

	var devices []DeviceInfo
	if err := json.Unmarshal(env.Data, &devices); err != nil {
		return nil, fmt.Errorf("duoplus list response malformed: %w", err)
	}
	return devices, nil
}

// Status fetches the live power state of one device. Implements the
// readiness gate's provider contract.
func (c *Client) Status(ctx context.Context, deviceID string) (int, error) {
	devices, err := c.ListDevices(ctx)
	if err != nil {
		return 0, err
	}
	for _, d := range devices {
		if d.ImageID == deviceID {
			return d.Status, nil
		}
	}
	return 0, fmt.Errorf("device %s not found in duoplus account", deviceID)
}

// Start issues a power-on command for the device. The device moves
// through the starting and configuring states before it reports on.
func (c *Client) Start(ctx context.Context, deviceID string) error {
	var env apiEnvelope
	payload := map[string]string{"image_id": deviceID, "action": "start"}
	if err := c.jsonRequest(ctx, http.MethodPost, powerPath, payload, &env); err != nil {
		return err
	}
	if env.Code != 200 {
		return fmt.Errorf("duoplus start rejected: code=%d msg=%s", env.Code, env.Msg)
	}
	logrus.Infof("[DUOPLUS] start issued for device %s", deviceID)
	return nil
}

// OpenURL opens the URL in Chrome on the device.
func (c *Client) OpenURL(ctx context.Context, deviceID, url string) error {
	cmd := fmt.Sprintf(`am start -a android.intent.action.VIEW -d "%s" -p com.android.chrome`, url)
	_, err := c.Command(ctx, deviceID, cmd)
	return err
}

// Tap taps the screen at the given coordinates.
func (c *Client) Tap(ctx context.Context, deviceID string, x, y int) error {
	_, err := c.Command(ctx, deviceID, fmt.Sprintf("input tap %d %d", x, y))
	return err
}

// Swipe performs a swipe gesture over durationMs milliseconds.
func (c *Client) Swipe(ctx context.Context, deviceID string, startX, startY, endX, endY, durationMs int) error {
	cmd := fmt.Sprintf("input swipe %d %d %d %d %d", startX, startY, endX, endY, durationMs)
	_, err := c.Command(ctx, deviceID, cmd)
	return err
}

// InputText types text through the ADB keyboard broadcast.
func (c *Client) InputText(ctx context.Context, deviceID, text string) error {
	escaped := strings.ReplaceAll(text, "'", `'\''`)
	cmd := fmt.Sprintf("am broadcast -a ADB_INPUT_TEXT --es msg '%s'", escaped)
	_, err := c.Command(ctx, deviceID, cmd)
	return err
}

// Screenshot captures the device screen and returns the PNG bytes. The
// capture travels base64-encoded through the command channel.
func (c *Client) Screenshot(ctx context.Context, deviceID string) ([]byte, error) {
	content, err := c.Command(ctx, deviceID, "screencap -p /sdcard/screen.png && base64 /sdcard/screen.png")
	if err != nil {
		return nil, err
	}
	b64 := strings.ReplaceAll(strings.TrimSpace(content), "\n", "")
	img, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("screenshot decode failed: %w", err)
	}
	return img, nil
}
