package verbs

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"

	"github.com/mindburn-labs/turnctl/pkg/artifactstore"
)

// wasmPageSize is the WebAssembly linear-memory page size in bytes.
const wasmPageSize = 64 * 1024

// runWASIModule fetches a WASI module by its artifact ref and runs it to
// completion (or until ctx's deadline fires), bounded to memCapMB of
// linear memory.
func runWASIModule(ctx context.Context, artifacts artifactstore.Store, moduleRef string, memCapMB int) (sandboxRunResult, error) {
	wasmBytes, err := artifacts.Get(ctx, moduleRef)
	if err != nil {
		return sandboxRunResult{}, fmt.Errorf("verbs: load wasm module %s: %w", moduleRef, err)
	}

	pages := uint32((memCapMB * 1024 * 1024) / wasmPageSize)
	runtimeConfig := wazero.NewRuntimeConfig().WithMemoryLimitPages(pages).WithCloseOnContextDone(true)

	runtime := wazero.NewRuntimeWithConfig(ctx, runtimeConfig)
	defer runtime.Close(ctx)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, runtime); err != nil {
		return sandboxRunResult{}, fmt.Errorf("verbs: instantiate WASI: %w", err)
	}

	var stdout, stderr bytes.Buffer
	moduleConfig := wazero.NewModuleConfig().
		WithStdout(&stdout).
		WithStderr(&stderr).
		WithStartFunctions("_start")

	_, err = runtime.InstantiateWithConfig(ctx, wasmBytes, moduleConfig)
	result := sandboxRunResult{Stdout: stdout.String(), Stderr: stderr.String()}

	if err == nil {
		return result, nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		result.TimedOut = true
		return result, nil
	}

	var exitErr *sys.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = int(exitErr.ExitCode())
		return result, nil
	}

	result.ExitCode = 1
	result.Stderr += err.Error()
	return result, nil
}
