package internal

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
)

type Accelerator string

const (
	AcceleratorMetal Accelerator = "metal"
	AcceleratorCUDA  Accelerator = "cuda"
	AcceleratorCPU   Accelerator = "cpu"
)

// DetectAccelerator guesses what a local model server can run on.
func DetectAccelerator(lookPath func(string) (string, error)) Accelerator {
	if runtime.GOOS == "darwin" && runtime.GOARCH == "arm64" {
		return AcceleratorMetal
	}
	if _, err := os.Stat("/dev/nvidia0"); err == nil {
		return AcceleratorCUDA
	}
	if _, err := lookPath("nvidia-smi"); err == nil {
		return AcceleratorCUDA
	}
	return AcceleratorCPU
}

type DoctorCheck struct {
	Name           string
	OK             bool
	Detail         string
	Recommendation string
}

type DoctorOutput struct {
	Checks []DoctorCheck
}

// Healthy reports whether every check passed.
func (o *DoctorOutput) Healthy() bool {
	for _, c := range o.Checks {
		if !c.OK {
			return false
		}
	}
	return true
}

// Recommendations lists the fixes for failed checks in check order.
func (o *DoctorOutput) Recommendations() []string {
	var recs []string
	for _, c := range o.Checks {
		if !c.OK && c.Recommendation != "" {
			recs = append(recs, c.Recommendation)
		}
	}
	return recs
}

type DoctorUseCase struct {
	ws       Workspace
	history  HistoryRepository
	gateway  Gateway
	lookPath func(string) (string, error)
}

// NewDoctorUseCase builds the health check. history and gateway may be nil
// when they could not be opened; the matching checks then fail.
func NewDoctorUseCase(ws Workspace, history HistoryRepository, gateway Gateway) *DoctorUseCase {
	return &DoctorUseCase{ws: ws, history: history, gateway: gateway, lookPath: exec.LookPath}
}

func (uc *DoctorUseCase) Execute(ctx context.Context) (*DoctorOutput, error) {
	out := &DoctorOutput{}
	out.Checks = append(out.Checks,
		uc.checkGit(ctx),
		uc.checkOllamaBinary(),
		uc.checkAccelerator(),
		uc.checkModel(ctx),
		uc.checkWorkspace(),
		uc.checkDatabase(),
	)
	return out, nil
}

func (uc *DoctorUseCase) checkGit(ctx context.Context) DoctorCheck {
	c := DoctorCheck{Name: "git repository", Recommendation: "Run contexthub inside a git repository (git init)"}
	if uc.history == nil {
		c.Detail = "not found"
		return c
	}
	n, err := uc.history.Count(ctx)
	if err != nil {
		c.Detail = err.Error()
		return c
	}
	c.OK = true
	c.Detail = fmt.Sprintf("%s (%d commits)", uc.ws.Root, n)
	return c
}

func (uc *DoctorUseCase) checkOllamaBinary() DoctorCheck {
	c := DoctorCheck{Name: "ollama installed", Recommendation: "Install Ollama: curl -fsSL https://ollama.com/install.sh | sh"}
	path, err := uc.lookPath("ollama")
	if err != nil {
		c.Detail = "not found on PATH"
		return c
	}
	c.OK = true
	c.Detail = path
	return c
}

// checkAccelerator is informational; CPU inference works, only slower.
func (uc *DoctorUseCase) checkAccelerator() DoctorCheck {
	acc := DetectAccelerator(uc.lookPath)
	c := DoctorCheck{Name: "accelerator", OK: true, Detail: string(acc)}
	if acc == AcceleratorCPU {
		c.Detail = "cpu only, expect slow local summaries"
	}
	return c
}

func (uc *DoctorUseCase) checkModel(ctx context.Context) DoctorCheck {
	c := DoctorCheck{Name: "model endpoint", Recommendation: "Start the model server: ollama serve"}
	if uc.gateway == nil {
		c.Detail = "not configured"
		return c
	}
	if !uc.gateway.IsAvailable(ctx) {
		c.Detail = "unreachable at " + uc.gateway.Endpoint()
		return c
	}
	c.OK = true
	c.Detail = "reachable at " + uc.gateway.Endpoint()
	return c
}

func (uc *DoctorUseCase) checkWorkspace() DoctorCheck {
	c := DoctorCheck{Name: "contexthub initialized", Recommendation: "Initialize: contexthub init"}
	if !uc.ws.Initialized() {
		c.Detail = "no " + WorkspaceDir + " directory"
		return c
	}
	entries, err := os.ReadDir(uc.ws.Dir)
	if err != nil {
		c.Detail = err.Error()
		return c
	}
	c.OK = true
	c.Detail = fmt.Sprintf("%s (%d items)", uc.ws.Dir, len(entries))
	return c
}

func (uc *DoctorUseCase) checkDatabase() DoctorCheck {
	c := DoctorCheck{Name: "database"}
	if _, err := os.Stat(uc.ws.DBPath()); err != nil {
		c.Detail = "not found"
		if uc.ws.Initialized() {
			c.Recommendation = "Recreate the database: contexthub sync"
		}
		return c
	}
	c.OK = true
	c.Detail = uc.ws.DBPath()
	return c
}
