package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"dojo/internal/domain/member"
)

// MemberStoreForArchive defines the store interface needed by Archive/Restore.
type MemberStoreForArchive interface {
	GetByID(ctx context.Context, id string) (member.Member, error)
	Save(ctx context.Context, m member.Member) error
}

// ArchiveMemberInput carries input for the archive and restore orchestrators.
type ArchiveMemberInput struct {
	MemberID string
}

// ArchiveMemberDeps holds dependencies for ArchiveMember and RestoreMember.
type ArchiveMemberDeps struct {
	MemberStore MemberStoreForArchive
	Now         func() time.Time
}

// ExecuteArchiveMember archives a member. An archived member may come back through
// the registration wizard's reactivation branch.
// PRE: MemberID must be non-empty; member must exist and not be archived
// POST: Member status set to archived
func ExecuteArchiveMember(ctx context.Context, input ArchiveMemberInput, deps ArchiveMemberDeps) error {
	return changeMemberStatus(ctx, input, deps, "member_archived", (*member.Member).Archive)
}

// ExecuteRestoreMember restores an archived member to active status.
// PRE: MemberID must be non-empty; member must exist and be archived
// POST: Member status set to active
func ExecuteRestoreMember(ctx context.Context, input ArchiveMemberInput, deps ArchiveMemberDeps) error {
	return changeMemberStatus(ctx, input, deps, "member_restored", (*member.Member).Restore)
}

func changeMemberStatus(ctx context.Context, input ArchiveMemberInput, deps ArchiveMemberDeps, event string, change func(*member.Member) error) error {
	if input.MemberID == "" {
		return errors.New("member ID is required")
	}

	m, err := deps.MemberStore.GetByID(ctx, input.MemberID)
	if err != nil {
		return err
	}
	if err := change(&m); err != nil {
		return invalid(err)
	}
	m.UpdatedAt = time.Now()
	if deps.Now != nil {
		m.UpdatedAt = deps.Now()
	}

	if err := deps.MemberStore.Save(ctx, m); err != nil {
		return err
	}

	slog.Info("member_event", "event", event, "member_id", input.MemberID, "membership_number", m.MembershipNumber)
	return nil
}
