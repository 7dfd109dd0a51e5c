package host

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"focusflow/internal/core/model"
	"focusflow/internal/core/tracking"
	"focusflow/internal/logging"

	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/devtool"
	"github.com/mafredri/cdp/protocol/runtime"
	"github.com/mafredri/cdp/rpcc"
	"github.com/sirupsen/logrus"
)

const focusCheckTimeout = 2 * time.Second

// TargetLister lists DevTools targets, most recently activated first.
type TargetLister interface {
	List(ctx context.Context) ([]*devtool.Target, error)
}

// CDPSource reads the active page of a Chrome instance started with
// --remote-debugging-port.
type CDPSource struct {
	targets  TargetLister
	interval time.Duration
	log      *logrus.Entry

	// focusCheck asks the page whether its document has focus.
	focusCheck func(ctx context.Context, target *devtool.Target) (bool, error)

	mu      sync.Mutex
	lastURL string
}

// NewCDPSource connects to the DevTools HTTP endpoint at devtoolsURL.
func NewCDPSource(devtoolsURL string, interval time.Duration) *CDPSource {
	return newCDPSource(devtool.New(devtoolsURL), interval)
}

func newCDPSource(targets TargetLister, interval time.Duration) *CDPSource {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &CDPSource{
		targets:    targets,
		interval:   interval,
		log:        logging.NewLogger("host"),
		focusCheck: documentHasFocus,
	}
}

// ActiveTab implements tracking.Host. The first page target is the active
// tab. When the focus check fails the window is assumed focused.
func (source *CDPSource) ActiveTab(ctx context.Context) (tracking.Tab, error) {
	page, err := source.activePage(ctx)
	if err != nil {
		return tracking.Tab{}, err
	}
	if page == nil {
		return tracking.Tab{}, nil
	}

	focused := true
	if source.focusCheck != nil {
		checkCtx, cancel := context.WithTimeout(ctx, focusCheckTimeout)
		hasFocus, err := source.focusCheck(checkCtx, page)
		cancel()
		if err != nil {
			source.log.WithError(err).Debug("Focus check failed, assuming focused")
		} else {
			focused = hasFocus
		}
	}
	return tracking.Tab{URL: page.URL, Focused: focused}, nil
}

// Run polls the target list and enqueues tabActivated whenever the active
// page URL changes.
func (source *CDPSource) Run(ctx context.Context, queue Enqueuer) {
	ticker := time.NewTicker(source.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			changed, err := source.poll(ctx)
			if err != nil {
				source.log.WithError(err).Debug("DevTools poll failed")
				continue
			}
			if changed {
				queue.Enqueue(model.EventTabActivated)
			}
		}
	}
}

func (source *CDPSource) poll(ctx context.Context) (bool, error) {
	page, err := source.activePage(ctx)
	if err != nil {
		return false, err
	}
	url := ""
	if page != nil {
		url = page.URL
	}
	source.mu.Lock()
	defer source.mu.Unlock()
	if url == source.lastURL {
		return false, nil
	}
	source.lastURL = url
	return true, nil
}

func (source *CDPSource) activePage(ctx context.Context) (*devtool.Target, error) {
	targets, err := source.targets.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list devtools targets: %w", err)
	}
	for _, target := range targets {
		if target.Type == devtool.Page {
			return target, nil
		}
	}
	return nil, nil
}

func documentHasFocus(ctx context.Context, target *devtool.Target) (bool, error) {
	conn, err := rpcc.DialContext(ctx, target.WebSocketDebuggerURL)
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", target.ID, err)
	}
	defer conn.Close()

	client := cdp.NewClient(conn)
	reply, err := client.Runtime.Evaluate(ctx, runtime.NewEvaluateArgs("document.hasFocus()").SetReturnByValue(true))
	if err != nil {
		return false, fmt.Errorf("evaluate: %w", err)
	}
	if reply.ExceptionDetails != nil {
		return false, fmt.Errorf("evaluate: %s", reply.ExceptionDetails.Text)
	}
	var focused bool
	if err := json.Unmarshal(reply.Result.Value, &focused); err != nil {
		return false, fmt.Errorf("decode focus result: %w", err)
	}
	return focused, nil
}
