package duoplus

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/AzielCF/az-amp/campaign/domain"
	"github.com/AzielCF/az-amp/campaign/domain/common"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Pause lengths between screen interactions. Chrome needs the longest
// one after a cold URL open.
const (
	waitAfterOpen   = 10 * time.Second
	waitAfterTap    = 2 * time.Second
	waitAfterInput  = 1 * time.Second
	waitAfterScroll = 2 * time.Second
	scrollRetries   = 3
)

// point is a screen coordinate calibrated for the 1080x1920 cloud
// phone profile running Chrome in mobile layout.
type point struct{ x, y int }

var (
	likeButton    = point{108, 1210}
	commentButton = point{270, 1210}
	commentField  = point{540, 1700}
	commentSend   = point{990, 1700}
	retweetButton = point{432, 1210}
	repostOption  = point{540, 1420}
	followButton  = point{992, 896}
	composeButton = point{972, 1716}
	composeField  = point{540, 400}
	composePost   = point{960, 160}
)

// Executor drives a DuoPlus device through Chrome to perform publishing
// and engagement actions. Each run captures a confirmation screenshot
// into the artifact directory.
type Executor struct {
	client      *Client
	artifactDir string
	timeout     time.Duration
	sleep       func(time.Duration)
}

func NewExecutor(client *Client, artifactDir string, timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Executor{client: client, artifactDir: artifactDir, timeout: timeout, sleep: time.Sleep}
}

// Execute performs one action on the device. A logical failure (action
// did not land) is reported inside the result; transport errors come
// back as the error value.
func (e *Executor) Execute(ctx context.Context, req domain.ExecuteRequest) (domain.ExecuteResult, error) {
	if req.DeviceID == "" {
		return domain.ExecuteResult{}, fmt.Errorf("device id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var err error
	switch req.Action {
	case domain.PublishAction:
		err = e.publish(ctx, req.DeviceID, req.Content)
	case common.InteractionLike:
		err = e.tapOnPost(ctx, req.DeviceID, req.Target, likeButton)
	case common.InteractionComment:
		err = e.comment(ctx, req.DeviceID, req.Target, req.Content)
	case common.InteractionRetweet:
		err = e.retweet(ctx, req.DeviceID, req.Target)
	case common.InteractionFollow:
		err = e.follow(ctx, req.DeviceID, req.Target)
	default:
		return domain.ExecuteResult{}, fmt.Errorf("unsupported action %q", req.Action)
	}
	if err != nil {
		return domain.ExecuteResult{Success: false, Error: err.Error()}, err
	}

	result := domain.ExecuteResult{Success: true, Comment: req.Content}
	if ref, shotErr := e.captureArtifact(ctx, req.DeviceID, string(req.Action)); shotErr == nil {
		result.ScreenshotRef = ref
	} else {
		logrus.WithError(shotErr).Warnf("[DUOPLUS] confirmation screenshot failed for device %s", req.DeviceID)
	}
	return result, nil
}

func (e *Executor) publish(ctx context.Context, deviceID, content string) error {
	if err := e.client.OpenURL(ctx, deviceID, "https://x.com/home"); err != nil {
		return err
	}
	e.sleep(waitAfterOpen)
	if err := e.client.Tap(ctx, deviceID, composeButton.x, composeButton.y); err != nil {
		return err
	}
	e.sleep(waitAfterTap)
	if err := e.client.Tap(ctx, deviceID, composeField.x, composeField.y); err != nil {
		return err
	}
	e.sleep(waitAfterTap)
	if err := e.client.InputText(ctx, deviceID, content); err != nil {
		return err
	}
	e.sleep(waitAfterInput)
	if err := e.client.Tap(ctx, deviceID, composePost.x, composePost.y); err != nil {
		return err
	}
	e.sleep(waitAfterTap)
	return nil
}

// tapOnPost opens the post and taps a single button under the post body,
// scrolling down between attempts when the tap target may be off-screen.
func (e *Executor) tapOnPost(ctx context.Context, deviceID, postURL string, target point) error {
	if postURL == "" {
		return fmt.Errorf("post url is required")
	}
	if err := e.client.OpenURL(ctx, deviceID, postURL); err != nil {
		return err
	}
	e.sleep(waitAfterOpen)

	var err error
	for i := 0; i < scrollRetries; i++ {
		if err = e.client.Tap(ctx, deviceID, target.x, target.y); err == nil {
			e.sleep(waitAfterTap)
			return nil
		}
		if scrollErr := e.client.Swipe(ctx, deviceID, 540, 1500, 540, 500, 500); scrollErr != nil {
			return scrollErr
		}
		e.sleep(waitAfterScroll)
	}
	return err
}

func (e *Executor) comment(ctx context.Context, deviceID, postURL, content string) error {
	if content == "" {
		return fmt.Errorf("comment content is required")
	}
	if err := e.tapOnPost(ctx, deviceID, postURL, commentButton); err != nil {
		return err
	}
	if err := e.client.Tap(ctx, deviceID, commentField.x, commentField.y); err != nil {
		return err
	}
	e.sleep(waitAfterTap)
	if err := e.client.InputText(ctx, deviceID, content); err != nil {
		return err
	}
	e.sleep(waitAfterInput)
	if err := e.client.Tap(ctx, deviceID, commentSend.x, commentSend.y); err != nil {
		return err
	}
	e.sleep(waitAfterTap)
	return nil
}

func (e *Executor) retweet(ctx context.Context, deviceID, postURL string) error {
	if err := e.tapOnPost(ctx, deviceID, postURL, retweetButton); err != nil {
		return err
	}
	// The retweet button opens a menu; the repost entry confirms it.
	if err := e.client.Tap(ctx, deviceID, repostOption.x, repostOption.y); err != nil {
		return err
	}
	e.sleep(waitAfterTap)
	return nil
}

func (e *Executor) follow(ctx context.Context, deviceID, username string) error {
	if username == "" {
		return fmt.Errorf("username is required")
	}
	profileURL := "https://x.com/" + url.PathEscape(username)
	if err := e.client.OpenURL(ctx, deviceID, profileURL); err != nil {
		return err
	}
	e.sleep(waitAfterOpen)
	if err := e.client.Tap(ctx, deviceID, followButton.x, followButton.y); err != nil {
		return err
	}
	e.sleep(waitAfterTap)
	return nil
}

// captureArtifact stores a confirmation screenshot and returns its path.
func (e *Executor) captureArtifact(ctx context.Context, deviceID, action string) (string, error) {
	if e.artifactDir == "" {
		return "", nil
	}
	img, err := e.client.Screenshot(ctx, deviceID)
	if err != nil {
		return "", err
	}
	dir := filepath.Join(e.artifactDir, "screenshots")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s_%s_%s.png", action, deviceID, uuid.NewString()[:8])
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, img, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
