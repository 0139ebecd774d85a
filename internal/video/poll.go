package video

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/platewise/recipe-cli/internal/model"
	"github.com/platewise/recipe-cli/pkg/videoai"
)

// Poll cadence: tight at first while short videos index, then backing
// off. Each wait gets up to 1s of jitter so concurrent requests do not
// align into a thundering herd.
const (
	pollPhaseOne      = 6  // attempts at 5s
	pollPhaseTwo      = 12 // attempts at 10s, 15s thereafter
	pollJitterMax     = time.Second
	settleShort       = 15 * time.Second
	settleLong        = 10 * time.Second
	settleLongCutoffS = 600
)

var (
	errPollBudget = eris.New("video: identifier polling budget exceeded")
	errPollAbort  = eris.New("video: too many consecutive polling errors")
)

func pollInterval(attempt int) time.Duration {
	switch {
	case attempt <= pollPhaseOne:
		return 5 * time.Second
	case attempt <= pollPhaseTwo:
		return 10 * time.Second
	default:
		return 15 * time.Second
	}
}

// awaitIdentifiers polls the task status endpoint until identifiers
// appear and, when the service exposes per-item parse statuses, every
// item reports parsed. The budget bounds accumulated wait time; three
// consecutive polling errors abort early rather than exhausting it.
func (o *Orchestrator) awaitIdentifiers(ctx context.Context, task *model.ExtractionTask, budget time.Duration) (*videoai.TaskResponse, error) {
	var elapsed time.Duration
	var pollErrors int
	attempt := 0

	for {
		resp, err := o.svc.GetTask(ctx, task.TaskID)
		switch {
		case err != nil:
			pollErrors++
			zap.L().Warn("task poll failed",
				zap.String("task_id", task.TaskID),
				zap.Int("consecutive_errors", pollErrors),
				zap.Error(err),
			)
			if pollErrors >= o.cfg.MaxPollErrors {
				return nil, eris.Wrap(errPollAbort, err.Error())
			}
		case len(resp.Identifiers) > 0 && resp.AllParsed():
			return resp, nil
		default:
			// Not ready yet: a well-formed response resets the error streak.
			pollErrors = 0
			if len(resp.Identifiers) > 0 {
				task.Advance(model.TaskAwaitingParse)
			}
		}

		attempt++
		wait := pollInterval(attempt) + o.jitter(pollJitterMax)
		elapsed += wait
		if elapsed > budget {
			return nil, errPollBudget
		}
		if err := o.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

// settleDelay absorbs eventual consistency in the upstream index between
// readiness and querying. Long videos have already waited long enough to
// need less of it.
func settleDelay(estimatedDurationSecs int) time.Duration {
	if estimatedDurationSecs >= settleLongCutoffS {
		return settleLong
	}
	return settleShort
}

func defaultSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func defaultJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(limit)))
}
