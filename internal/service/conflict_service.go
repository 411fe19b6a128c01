package service

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"go-fileops/internal/model"
	"go-fileops/internal/storage"
	"go-fileops/pkg/apierror"
)

const maxRenameAttempts = 10000

// NormalizeConflictAction parses a preference. An empty value yields fallback.
func NormalizeConflictAction(raw string, fallback model.ConflictAction) (model.ConflictAction, error) {
	action := model.ConflictAction(strings.ToLower(strings.TrimSpace(raw)))
	if action == "" {
		action = fallback
	}
	if action == "" {
		action = model.ConflictAsk
	}

	switch action {
	case model.ConflictAsk, model.ConflictReplace, model.ConflictSkip, model.ConflictRename, model.ConflictCancel:
		return action, nil
	default:
		return "", apierror.BadRequest("invalid conflict_policy (allowed: ask|replace|skip|rename|cancel)", raw)
	}
}

func normalizeConflictDecision(decision model.ConflictDecision) (model.ConflictDecision, error) {
	action, err := NormalizeConflictAction(string(decision.Action), "")
	if err != nil {
		return model.ConflictDecision{}, err
	}
	if action == model.ConflictAsk || strings.TrimSpace(string(decision.Action)) == "" {
		return model.ConflictDecision{}, apierror.BadRequest("decision must be one of: replace|skip|rename|cancel", string(decision.Action))
	}

	scope := model.ConflictScope(strings.ToLower(strings.TrimSpace(string(decision.Scope))))
	switch scope {
	case "":
		scope = model.ScopeThisItem
	case model.ScopeThisItem, model.ScopeApplyToAll:
	default:
		return model.ConflictDecision{}, apierror.BadRequest("scope must be this_item or apply_to_all", string(decision.Scope))
	}

	return model.ConflictDecision{Action: action, Scope: scope}, nil
}

// conflictResolver holds one operation's preference and any cached
// apply-to-all decision.
type conflictResolver struct {
	mu         sync.Mutex
	preference model.ConflictAction
	applyAll   model.ConflictAction
}

func newConflictResolver(preference model.ConflictAction) *conflictResolver {
	return &conflictResolver{preference: preference}
}

// decide returns the action for the next collision. ConflictAsk means the
// caller has to obtain a decision.
func (r *conflictResolver) decide() model.ConflictAction {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.applyAll != "" {
		return r.applyAll
	}
	return r.preference
}

func (r *conflictResolver) record(decision model.ConflictDecision) {
	if decision.Scope != model.ScopeApplyToAll {
		return
	}

	r.mu.Lock()
	r.applyAll = decision.Action
	r.mu.Unlock()
}

// UniqueName returns the first free sibling of desired named
// "stem (n)ext", counting n up from 1.
func UniqueName(fsys storage.FS, desired string, isDir bool) (string, error) {
	parent := filepath.Dir(desired)
	stem, ext := splitName(filepath.Base(desired), isDir)

	for index := 1; index <= maxRenameAttempts; index++ {
		candidate := filepath.Join(parent, fmt.Sprintf("%s (%d)%s", stem, index, ext))
		exists, err := storage.Exists(fsys, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}

	return "", &model.ConflictError{Path: desired, Reason: "could not resolve unique target name"}
}

// splitName keeps the whole name as the stem for directories and dotfiles
// such as ".bashrc".
func splitName(name string, isDir bool) (string, string) {
	if isDir {
		return name, ""
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	if stem == "" {
		return name, ""
	}
	return stem, ext
}

// stagingPath names a hidden sibling of target that receives replacement
// content before it is committed.
func stagingPath(target string, operationID string) string {
	return siblingPath(target, operationID, "staging")
}

func siblingPath(target string, operationID string, suffix string) string {
	tag := operationID
	if len(tag) > 8 {
		tag = tag[:8]
	}
	if tag == "" {
		tag = uuid.NewString()[:8]
	}
	return filepath.Join(filepath.Dir(target), fmt.Sprintf(".%s.fileops-%s.%s", filepath.Base(target), tag, suffix))
}

// checkReplaceAllowed refuses to replace a directory that contains source.
func checkReplaceAllowed(target string, source string) error {
	if source != "" && storage.IsWithin(target, source) {
		return &model.ConflictError{Path: target, Reason: "cannot replace a directory that contains the source"}
	}
	return nil
}

// commitReplace swaps staged into target. The existing entry is renamed
// aside first and deleted only after the staged entry is in place; on
// failure the original is put back.
func commitReplace(fsys storage.FS, staged string, target string, operationID string) (string, error) {
	backup := siblingPath(target, operationID, "replaced")

	existed, err := storage.Exists(fsys, target)
	if err != nil {
		return "", err
	}

	if existed {
		if err := fsys.Rename(target, backup); err != nil {
			return "", fmt.Errorf("set aside %q: %w", target, err)
		}
	}

	if err := fsys.Rename(staged, target); err != nil {
		if existed {
			if restoreErr := fsys.Rename(backup, target); restoreErr != nil {
				return "", fmt.Errorf("commit %q: %w (original left at %q: %v)", target, err, backup, restoreErr)
			}
		}
		return "", fmt.Errorf("commit %q: %w", target, err)
	}

	if !existed {
		return "", nil
	}

	if err := fsys.RemoveAll(backup); err != nil {
		return fmt.Sprintf("replaced %q but could not remove previous content at %q: %v", target, backup, err), nil
	}
	return "", nil
}
