// Package refine drives a bounded generate, evaluate, optimize loop.
//
// A Controller asks its Generator for a first draft, has the Evaluator judge
// it, and while the verdict is needs_improvement and the iteration cap has
// not been reached, asks the Optimizer for a better draft and evaluates
// again:
//
//	ctrl := refine.New(gen, eval, opt, refine.WithLogger(logger))
//	res, err := ctrl.Run(ctx, "remote work", 5)
//	if err != nil {
//	    var failed *refine.FailedError
//	    if errors.As(err, &failed) {
//	        log.Printf("stopped at %s, last draft: %q", failed.Step, failed.Candidate)
//	    }
//	    return err
//	}
//	fmt.Println(res.Candidate, res.Approved())
//
// Reaching the cap without approval is a normal outcome: Run returns the last
// draft with verdict needs_improvement and a nil error. Any collaborator
// failure aborts the loop with a *FailedError.
//
// The transition function Next is exported so the loop can be stepped or
// inspected from a saved State; Continue resumes a State.
package refine
