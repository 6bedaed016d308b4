package aspect

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/contractweave/internal/ir"
)

// LoadMode controls how errors are handled while loading aspects.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the aspects found in a directory or source.
type LoadResult struct {
	Requests  []ir.AspectRequest
	FileCount int
}

// LoadError is a loading failure with a stable code.
type LoadError struct {
	Code    string
	Aspect  string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	prefix := e.Code
	if e.Aspect != "" {
		prefix += " [" + e.Aspect + "]"
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), prefix, e.Message)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Error codes shared by every command that loads aspects.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeNoAspects   = "E007" // No aspect declared

	ErrCodeAspect       = "E101" // Aspect is not a struct or its name is not an identifier
	ErrCodeContextType  = "E102" // Missing or invalid context type
	ErrCodeMethod       = "E103" // Missing or invalid hooked method
	ErrCodePredicate    = "E104" // Predicate is not a Go expression
	ErrCodeUnknownField = "E105" // Unexpected field in an aspect
)

// MapFieldToErrorCode maps a CompileError field to an error code.
func MapFieldToErrorCode(field string) string {
	switch field {
	case "aspect":
		return ErrCodeAspect
	case "field":
		return ErrCodeUnknownField
	case "context":
		return ErrCodeContextType
	case "method":
		return ErrCodeMethod
	case "before", "after":
		return ErrCodePredicate
	default:
		return ErrCodeGeneric
	}
}

// Load loads every aspect declared by the CUE package in dir.
func Load(dir string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("aspects directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing aspects directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(files) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	result, errs := extract(value, mode)
	result.FileCount = len(files)
	return result, errs
}

// Parse loads the aspects of a single CUE source. filename is used in
// positions only.
func Parse(filename string, src []byte, mode LoadMode) (*LoadResult, []error) {
	value := cuecontext.New().CompileBytes(src, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}
	result, errs := extract(value, mode)
	result.FileCount = 1
	return result, errs
}

func extract(value cue.Value, mode LoadMode) (*LoadResult, []error) {
	result := &LoadResult{}
	var errs []error

	aspects := value.LookupPath(cue.ParsePath("aspect"))
	if !aspects.Exists() {
		return result, []error{&LoadError{Code: ErrCodeNoAspects, Message: "no aspects declared"}}
	}
	iter, err := aspects.Fields()
	if err != nil {
		return result, []error{&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating aspects: %v", err)}}
	}

	for iter.Next() {
		name := iter.Label()
		var problems []error

		req, err := CompileAspect(iter.Value())
		if err != nil {
			problems = append(problems, convertCompileError(err, name))
		} else {
			for _, verr := range Validate(*req) {
				problems = append(problems, convertCompileError(verr, name))
			}
		}
		if len(problems) > 0 {
			errs = append(errs, problems...)
			if mode == LoadModeFailFast {
				return result, errs[:1]
			}
			continue
		}
		result.Requests = append(result.Requests, *req)
	}

	if len(result.Requests) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeNoAspects, Message: "no aspects declared"})
	}
	return result, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func convertCompileError(err error, aspect string) *LoadError {
	var compileErr *CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Aspect:  aspect,
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeGeneric, Aspect: aspect, Message: err.Error()}
}
