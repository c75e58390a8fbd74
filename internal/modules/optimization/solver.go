package optimization

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// Equality is a nonlinear equality constraint: Fn must evaluate to zero at
// the solution. Grad is optional; when nil the solver falls back to central
// finite differences.
type Equality struct {
	Name string
	Fn   func(w []float64) float64
	Grad func(grad, w []float64)
}

// Bounds holds per-weight box bounds.
type Bounds struct {
	Lower []float64
	Upper []float64
}

// LongOnlyBounds returns the [0,1] box used when short selling is disabled.
func LongOnlyBounds(n int) *Bounds {
	lower := make([]float64, n)
	upper := make([]float64, n)
	for i := 0; i < n; i++ {
		upper[i] = 1.0
	}
	return &Bounds{Lower: lower, Upper: upper}
}

// Problem describes a constrained minimization over a weight vector.
type Problem struct {
	N          int
	Objective  func(w []float64) float64
	Gradient   func(grad, w []float64) // optional analytic gradient
	Equalities []Equality
	Bounds     *Bounds   // nil means unconstrained (short selling allowed)
	Initial    []float64 // nil means uniform 1/n
}

// Result is the outcome of a constrained solve. Weights are only meaningful
// when Converged is true; Message carries the solver diagnostic either way.
type Result struct {
	Weights   []float64
	Converged bool
	Message   string
}

// ConstraintSolver is the contract between the portfolio formulations and the
// solving strategy. The formulations only describe problems; how they are
// minimized is interchangeable behind this interface.
type ConstraintSolver interface {
	Minimize(p Problem) Result
}

// Solver minimizes a scalar objective subject to equality constraints and
// optional box bounds. Constraints are enforced with quadratic-penalty
// continuation minimized by BFGS (NelderMead fallback), followed by a Newton
// feasibility-restoration step that drives constraint violation below the
// tolerance. Gradients are estimated by finite differences unless the caller
// supplies analytic ones. Fully deterministic for fixed inputs.
type Solver struct {
	constraintTol float64
	penaltyStart  float64
	penaltyGrowth float64
	penaltyRounds int
	maxIterations int
	maxRuntime    time.Duration
	log           zerolog.Logger
}

var _ ConstraintSolver = (*Solver)(nil)

// NewSolver creates a solver with the default tolerances.
func NewSolver(log zerolog.Logger) *Solver {
	return &Solver{
		constraintTol: 1e-6,
		penaltyStart:  1e3,
		penaltyGrowth: 100.0,
		penaltyRounds: 3,
		maxIterations: 2000,
		log:           log.With().Str("component", "solver").Logger(),
	}
}

// SetMaxRuntime caps wall-clock time per penalty round. Zero means no cap
// beyond the iteration budget.
func (s *Solver) SetMaxRuntime(d time.Duration) {
	s.maxRuntime = d
}

// Minimize solves the problem. Non-convergence is reported through the
// result, never as a panic or error: it is a normal outcome for infeasible
// sub-problems (e.g. unreachable frontier targets).
func (s *Solver) Minimize(p Problem) Result {
	n := p.N
	if n <= 0 || p.Objective == nil {
		return Result{Message: "empty problem"}
	}
	if p.Initial != nil && len(p.Initial) != n {
		return Result{Message: fmt.Sprintf("initial guess has length %d, expected %d", len(p.Initial), n)}
	}

	x := p.Initial
	if x == nil {
		x = uniformWeights(n)
	}
	x = append([]float64(nil), x...)

	penalty := s.penaltyStart
	lastStatus := optimize.NotTerminated

	for round := 0; round < s.penaltyRounds; round++ {
		status, next, ok := s.minimizePenalized(p, x, penalty)
		lastStatus = status
		if !ok {
			if round == 0 {
				return Result{Message: fmt.Sprintf("optimizer did not converge: status=%v", status)}
			}
			// Later rounds start from a near-optimal, ill-conditioned point;
			// keep the last good iterate instead of failing the solve.
			break
		}
		x = next
		penalty *= s.penaltyGrowth
	}

	w := s.projectToBounds(x, p.Bounds)
	w = s.restoreFeasibility(w, p)

	violation := maxConstraintViolation(w, p.Equalities)
	for i := range w {
		if math.IsNaN(w[i]) || math.IsInf(w[i], 0) {
			return Result{Message: "solution contains non-finite weights"}
		}
	}

	if violation > s.constraintTol {
		return Result{
			Message: fmt.Sprintf("constraint violation %g exceeds tolerance %g (status=%v)", violation, s.constraintTol, lastStatus),
		}
	}

	return Result{
		Weights:   w,
		Converged: true,
		Message:   fmt.Sprintf("converged: status=%v violation=%g", lastStatus, violation),
	}
}

// minimizePenalized runs one unconstrained minimization of the penalized
// objective, BFGS first with a NelderMead fallback (mirrors how pathological
// curvature is handled elsewhere in the codebase). Bound violations are
// penalized quadratically rather than clamped: clamping flattens the
// objective outside the box, and the resulting zero gradient lets BFGS
// declare convergence on a box corner that is not a constrained optimum.
func (s *Solver) minimizePenalized(p Problem, initial []float64, penalty float64) (optimize.Status, []float64, bool) {
	penalized := func(x []float64) float64 {
		obj := p.Objective(x)
		for _, eq := range p.Equalities {
			c := eq.Fn(x)
			obj += penalty * c * c
		}
		obj += penalty * boundViolationSq(x, p.Bounds)
		return obj
	}

	problem := optimize.Problem{Func: penalized}

	if p.Gradient != nil && allHaveGradients(p.Equalities) {
		problem.Grad = func(grad, x []float64) {
			p.Gradient(grad, x)
			cg := make([]float64, len(x))
			for _, eq := range p.Equalities {
				c := eq.Fn(x)
				eq.Grad(cg, x)
				for i := range grad {
					grad[i] += 2 * penalty * c * cg[i]
				}
			}
			addBoundViolationGrad(grad, x, p.Bounds, penalty)
		}
	} else {
		// Central-difference gradient of the penalized objective; same
		// behavior as the numerical gradients inside an SQP routine.
		problem.Grad = func(grad, x []float64) {
			fd.Gradient(grad, penalized, x, &fd.Settings{Formula: fd.Central})
		}
	}

	settings := &optimize.Settings{
		MajorIterations: s.maxIterations,
		Runtime:         s.maxRuntime,
	}

	successStatuses := map[optimize.Status]bool{
		optimize.Success:             true,
		optimize.GradientThreshold:   true,
		optimize.FunctionConvergence: true,
	}

	result, err := optimize.Minimize(problem, initial, settings, &optimize.BFGS{})
	if err == nil && successStatuses[result.Status] {
		return result.Status, result.X, true
	}

	status := optimize.Failure
	if err == nil {
		status = result.Status
	}

	result, err = optimize.Minimize(problem, initial, settings, &optimize.NelderMead{})
	if err != nil {
		s.log.Debug().Err(err).Msg("penalized minimization failed")
		return status, nil, false
	}
	if !successStatuses[result.Status] {
		return result.Status, nil, false
	}
	return result.Status, result.X, true
}

// restoreFeasibility applies damped Newton steps along the constraint
// Jacobian to remove the residual violation left by the penalty method:
// solve (J Jᵀ)λ = -c and step Δw = Jᵀλ, clamping to bounds each iteration.
func (s *Solver) restoreFeasibility(w []float64, p Problem) []float64 {
	m := len(p.Equalities)
	if m == 0 {
		return w
	}
	n := len(w)
	const h = 1e-7

	for iter := 0; iter < 25; iter++ {
		c := make([]float64, m)
		maxViol := 0.0
		for k, eq := range p.Equalities {
			c[k] = eq.Fn(w)
			if v := math.Abs(c[k]); v > maxViol {
				maxViol = v
			}
		}
		if maxViol <= s.constraintTol*1e-2 {
			break
		}

		jac := mat.NewDense(m, n, nil)
		for k, eq := range p.Equalities {
			if eq.Grad != nil {
				row := make([]float64, n)
				eq.Grad(row, w)
				jac.SetRow(k, row)
				continue
			}
			for j := 0; j < n; j++ {
				orig := w[j]
				w[j] = orig + h
				fp := eq.Fn(w)
				w[j] = orig - h
				fm := eq.Fn(w)
				w[j] = orig
				jac.Set(k, j, (fp-fm)/(2*h))
			}
		}

		var jjt mat.Dense
		jjt.Mul(jac, jac.T())
		negC := mat.NewVecDense(m, nil)
		for k := range c {
			negC.SetVec(k, -c[k])
		}
		var lambda mat.VecDense
		if err := lambda.SolveVec(&jjt, negC); err != nil {
			// Singular Jacobian: the constraints are locally dependent and
			// no further progress is possible from this point.
			break
		}

		for j := 0; j < n; j++ {
			var step float64
			for k := 0; k < m; k++ {
				step += jac.At(k, j) * lambda.AtVec(k)
			}
			w[j] += step
		}
		w = s.projectToBounds(w, p.Bounds)
	}
	return w
}

// boundViolationSq is the squared distance from x to the box.
func boundViolationSq(x []float64, b *Bounds) float64 {
	if b == nil {
		return 0
	}
	var sq float64
	for i := range x {
		if d := b.Lower[i] - x[i]; d > 0 {
			sq += d * d
		}
		if d := x[i] - b.Upper[i]; d > 0 {
			sq += d * d
		}
	}
	return sq
}

func addBoundViolationGrad(grad, x []float64, b *Bounds, penalty float64) {
	if b == nil {
		return
	}
	for i := range x {
		if d := b.Lower[i] - x[i]; d > 0 {
			grad[i] -= 2 * penalty * d
		}
		if d := x[i] - b.Upper[i]; d > 0 {
			grad[i] += 2 * penalty * d
		}
	}
}

func (s *Solver) projectToBounds(x []float64, b *Bounds) []float64 {
	proj := make([]float64, len(x))
	copy(proj, x)
	if b == nil {
		return proj
	}
	for i := range proj {
		proj[i] = math.Max(b.Lower[i], math.Min(b.Upper[i], proj[i]))
	}
	return proj
}

func maxConstraintViolation(w []float64, eqs []Equality) float64 {
	maxViol := 0.0
	for _, eq := range eqs {
		if v := math.Abs(eq.Fn(w)); v > maxViol {
			maxViol = v
		}
	}
	return maxViol
}

func allHaveGradients(eqs []Equality) bool {
	for _, eq := range eqs {
		if eq.Grad == nil {
			return false
		}
	}
	return true
}

// budgetConstraint is the full-investment constraint Σw = 1 shared by every
// portfolio formulation.
func budgetConstraint() Equality {
	return Equality{
		Name: "budget",
		Fn: func(w []float64) float64 {
			sum := 0.0
			for _, wi := range w {
				sum += wi
			}
			return sum - 1.0
		},
		Grad: func(grad, w []float64) {
			for i := range grad {
				grad[i] = 1.0
			}
		},
	}
}

// targetReturnConstraint pins the portfolio return μ'w to target.
func targetReturnConstraint(mu []float64, target float64) Equality {
	return Equality{
		Name: "target_return",
		Fn: func(w []float64) float64 {
			return PortfolioReturn(w, mu) - target
		},
		Grad: func(grad, w []float64) {
			copy(grad, mu)
		},
	}
}
