// ABOUTME: Runs verifiers in order over a final answer
// ABOUTME: A panicking or erroring verifier becomes a Retry with the failure detail

package agent

import (
	"context"
	"fmt"

	pilog "github.com/mauromedda/pi-loop-go/internal/log"
	"github.com/mauromedda/pi-loop-go/internal/tools"
)

// verify returns the first non-passing verdict, or Pass when all pass.
func verify(ctx context.Context, verifiers []Verifier, text string, vctx tools.Context) Verdict {
	for i, v := range verifiers {
		verdict := runVerifier(ctx, v, text, vctx)
		if !verdict.Passed {
			pilog.Debug("agent: verifier %d rejected answer: %s", i, verdict.Reason)
			return verdict
		}
	}
	return Pass()
}

func runVerifier(ctx context.Context, v Verifier, text string, vctx tools.Context) (verdict Verdict) {
	defer func() {
		if r := recover(); r != nil {
			pilog.Warn("agent: verifier panicked: %v", r)
			verdict = Retry(fmt.Sprintf("verifier failed: %v", r))
		}
	}()

	verdict, err := v.Verify(ctx, text, vctx)
	if err != nil {
		return Retry(fmt.Sprintf("verifier failed: %v", err))
	}
	return verdict
}

// feedbackPrompt is the synthetic user turn appended after a rejected answer.
func feedbackPrompt(reason string) string {
	return fmt.Sprintf("Your previous answer did not pass verification: %s\nPlease address this and answer again.", reason)
}
