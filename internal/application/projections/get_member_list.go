package projections

import (
	"context"

	"github.com/samber/lo"

	"dojo/internal/adapters/storage/member"
	"dojo/internal/application/listutil"
	domainMember "dojo/internal/domain/member"
)

// MemberSortColumns are the columns the admin member list can be sorted by.
var MemberSortColumns = []string{"name", "number", "program", "status", "joined"}

// MemberFilterKeys are the exact-match filters accepted by the member list.
var MemberFilterKeys = []string{"program", "status"}

// MemberRow is one line of the admin member list.
type MemberRow struct {
	ID               string
	MembershipNumber string
	Name             string
	Email            string
	Program          string
	Status           string
	Minor            bool
	Joined           string
}

// GetMemberListResult carries the query result.
type GetMemberListResult struct {
	Members []MemberRow
	Page    listutil.PageInfo
	Params  listutil.ListParams
}

// GetMemberListDeps holds dependencies for GetMemberList.
type GetMemberListDeps struct {
	MemberStore MemberStore
}

// QueryGetMemberList returns one page of members matching the search and filters.
// PRE: params come from listutil.Parse with MemberSortColumns and MemberFilterKeys
// POST: Page is clamped to the available pages
func QueryGetMemberList(ctx context.Context, params listutil.ListParams, deps GetMemberListDeps) (GetMemberListResult, error) {
	filter := member.ListFilter{
		Program: params.Filters["program"],
		Status:  params.Filters["status"],
		Search:  params.Search,
		Sort:    params.Sort,
		Dir:     params.Dir,
	}
	total, err := deps.MemberStore.Count(ctx, filter)
	if err != nil {
		return GetMemberListResult{}, err
	}
	page := listutil.NewPageInfo(params.Page, params.PerPage, total)
	filter.Limit = page.PerPage
	filter.Offset = page.Offset()

	members, err := deps.MemberStore.List(ctx, filter)
	if err != nil {
		return GetMemberListResult{}, err
	}
	return GetMemberListResult{
		Members: lo.Map(members, func(m domainMember.Member, _ int) MemberRow { return memberRow(m) }),
		Page:    page,
		Params:  params,
	}, nil
}

func memberRow(m domainMember.Member) MemberRow {
	return MemberRow{
		ID:               m.ID,
		MembershipNumber: m.MembershipNumber,
		Name:             m.Name(),
		Email:            m.Email,
		Program:          m.Program,
		Status:           m.Status,
		Minor:            m.GuardianID != "",
		Joined:           m.CreatedAt.Format("2006-01-02"),
	}
}

// QueryAllMembers returns every member matching the filters, for export.
func QueryAllMembers(ctx context.Context, params listutil.ListParams, deps GetMemberListDeps) ([]domainMember.Member, error) {
	return deps.MemberStore.List(ctx, member.ListFilter{
		Program: params.Filters["program"],
		Status:  params.Filters["status"],
		Search:  params.Search,
		Sort:    params.Sort,
		Dir:     params.Dir,
	})
}
