package admin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"legaldocs-backend/internal/documents"
	"legaldocs-backend/internal/shared/telemetry"
	"legaldocs-backend/internal/users"
)

// Perform runs one admin action on behalf of adminID.
func (s *Service) Perform(ctx context.Context, adminID string, a Action) (ActionResult, error) {
	a.Action = strings.TrimSpace(a.Action)
	a.TargetID = strings.TrimSpace(a.TargetID)
	if !isAction(a.Action) {
		return ActionResult{}, ErrInvalidAction
	}
	if a.Action != ActionCleanupOrphans {
		if a.TargetID == "" {
			return ActionResult{}, ErrTargetRequired
		}
		if a.TargetID == adminID && a.Action != ActionActivateUser {
			return ActionResult{}, ErrSelfTarget
		}
	}

	res := ActionResult{
		Action:   a.Action,
		TargetID: optionalString(a.TargetID),
		Reason:   optionalString(strings.TrimSpace(a.Reason)),
		AdminID:  adminID,
	}
	var err error
	switch a.Action {
	case ActionSuspendUser:
		err = s.setStatus(ctx, a.TargetID, users.StatusSuspended, &res)
	case ActionActivateUser:
		err = s.setStatus(ctx, a.TargetID, users.StatusActive, &res)
	case ActionDeleteUser:
		err = s.deleteUser(ctx, a.TargetID, &res)
	case ActionResetPassword:
		err = s.resetPassword(ctx, a.TargetID, &res)
	case ActionCleanupOrphans:
		err = s.cleanupOrphans(ctx, &res)
	}
	if err != nil {
		return ActionResult{}, err
	}
	res.PerformedAt = s.now().UTC().Format(time.RFC3339)

	telemetry.Info("admin.action", map[string]any{
		"action":    a.Action,
		"admin_id":  adminID,
		"target_id": a.TargetID,
		"reason":    a.Reason,
	})
	return res, nil
}

// setStatus suspends or reactivates an account. Suspension also revokes
// every live session.
func (s *Service) setStatus(ctx context.Context, userID, status string, res *ActionResult) error {
	u, err := s.Users.SetStatus(ctx, userID, status)
	if err != nil {
		return err
	}
	res.Status = u.Status
	if status == users.StatusSuspended {
		s.revoke(ctx, userID)
	}
	return nil
}

func (s *Service) deleteUser(ctx context.Context, userID string, res *ActionResult) error {
	if _, err := s.Users.GetByID(ctx, userID); err != nil {
		return err
	}
	n, err := s.Deleter.DeleteAllForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("delete documents of %s: %w", userID, err)
	}
	if err := s.Users.Delete(ctx, userID); err != nil {
		return err
	}
	s.revoke(ctx, userID)
	res.DocumentsDeleted = intPtr(n)
	res.Status = "deleted"
	return nil
}

// resetPassword returns the temporary password exactly once; it is never
// stored in clear or logged.
func (s *Service) resetPassword(ctx context.Context, userID string, res *ActionResult) error {
	temp, err := s.Users.ResetPassword(ctx, userID)
	if err != nil {
		return err
	}
	s.revoke(ctx, userID)
	res.TemporaryPassword = temp
	return nil
}

// cleanupOrphans deletes stored objects under the documents prefix that no
// document row points at. Keys are listed before rows.
func (s *Service) cleanupOrphans(ctx context.Context, res *ActionResult) error {
	keys, err := s.Store.List(ctx, documents.StoragePrefix)
	if err != nil {
		return fmt.Errorf("list objects: %w", err)
	}
	docs, err := s.documentsSince(ctx, nil)
	if err != nil {
		return err
	}
	referenced := make(map[string]bool, len(docs))
	for _, d := range docs {
		referenced[d.FilePath] = true
	}

	orphaned, deleted, failed := 0, 0, 0
	for _, key := range keys {
		if referenced[key] {
			continue
		}
		orphaned++
		if err := s.Store.Delete(ctx, key); err != nil {
			failed++
			telemetry.Warn("admin.orphan_delete_failed", map[string]any{"key": key, "error": err.Error()})
			continue
		}
		deleted++
	}
	res.FilesScanned = intPtr(len(keys))
	res.OrphanedFiles = intPtr(orphaned)
	res.FilesDeleted = intPtr(deleted)
	res.FilesFailed = intPtr(failed)
	return nil
}

func (s *Service) revoke(ctx context.Context, userID string) {
	if s.Sessions == nil {
		return
	}
	if err := s.Sessions.RevokeAll(ctx, userID); err != nil {
		telemetry.Error("admin.revoke_failed", map[string]any{"user_id": userID, "error": err.Error()})
	}
}
