// Package memory はプロセス内メモリ上のStore実装を提供する。
// 開発用のSTORE_DRIVER=memoryとサービス層のテストで使用する。
package memory

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/teamcal/internal/model"
	"github.com/hitoshi/teamcal/internal/repository"
)

// ErrForeignKey は参照先の行が存在しない、または参照元の行が残っている操作を表す。
// PostgreSQLの外部キー制約（NO ACTION）に相当する。
var ErrForeignKey = errors.New("foreign key violation")

// DefaultPriorities はマイグレーションでシードされる優先度カタログと同じ内容。
var DefaultPriorities = []model.EventPriority{
	{ID: "1", Name: "standard", Detail: "Standard", Color: "#edf0f3"},
	{ID: "2", Name: "notime", Detail: "Keine Zeit", Color: "#cc343e"},
	{ID: "3", Name: "uncertain", Detail: "Unsicher", Color: "#efb700"},
	{ID: "4", Name: "certain", Detail: "Sicher", Color: "#008450"},
}

type idSet = map[string]struct{}

type state struct {
	users       map[string]model.User
	usernames   map[string]string
	sessions    map[string]model.Session
	orgs        map[string]model.Org
	orgMembers  map[string]map[string]time.Time // orgID -> userID -> entry_time
	teams       map[string]model.Team
	teamMembers map[string]map[string]bool // teamID -> userID -> is_admin
	invites     map[string]model.TeamInvite
	priorities  []model.EventPriority
	events      map[string]model.Event
	userEvents  map[string]idSet
	teamEvents  map[string]idSet
}

func newState() *state {
	return &state{
		users:       make(map[string]model.User),
		usernames:   make(map[string]string),
		sessions:    make(map[string]model.Session),
		orgs:        make(map[string]model.Org),
		orgMembers:  make(map[string]map[string]time.Time),
		teams:       make(map[string]model.Team),
		teamMembers: make(map[string]map[string]bool),
		invites:     make(map[string]model.TeamInvite),
		priorities:  slices.Clone(DefaultPriorities),
		events:      make(map[string]model.Event),
		userEvents:  make(map[string]idSet),
		teamEvents:  make(map[string]idSet),
	}
}

func cloneNested[V any](src map[string]map[string]V) map[string]map[string]V {
	dst := make(map[string]map[string]V, len(src))
	for k, inner := range src {
		dst[k] = maps.Clone(inner)
	}
	return dst
}

func (s *state) clone() *state {
	return &state{
		users:       maps.Clone(s.users),
		usernames:   maps.Clone(s.usernames),
		sessions:    maps.Clone(s.sessions),
		orgs:        maps.Clone(s.orgs),
		orgMembers:  cloneNested(s.orgMembers),
		teams:       maps.Clone(s.teams),
		teamMembers: cloneNested(s.teamMembers),
		invites:     maps.Clone(s.invites),
		priorities:  slices.Clone(s.priorities),
		events:      maps.Clone(s.events),
		userEvents:  cloneNested(s.userEvents),
		teamEvents:  cloneNested(s.teamEvents),
	}
}

// Store はメモリ上の状態をトランザクション単位で更新するStore実装。
// トランザクションは1つのミューテックスで直列化され、
// 複製した状態に変更を加えてコミット時に差し替える。
type Store struct {
	mu    sync.Mutex
	state *state
}

// NewStore は優先度カタログをシードした空のStoreを生成する。
func NewStore() *Store {
	return &Store{state: newState()}
}

// WithTx はfnを1つのトランザクション内で実行する。
// fnがエラーを返した場合、またはコンテキストがキャンセルされた場合は変更を破棄する。
func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state.clone()
	if err := fn(&tx{st: working}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.state = working
	return nil
}

// tx は1トランザクション分の作業状態に対するリポジトリ群。
type tx struct {
	st *state
}

func (t *tx) Users() repository.UserRepository       { return userRepo{t.st} }
func (t *tx) Sessions() repository.SessionRepository { return sessionRepo{t.st} }
func (t *tx) Orgs() repository.OrgRepository         { return orgRepo{t.st} }
func (t *tx) Teams() repository.TeamRepository       { return teamRepo{t.st} }
func (t *tx) Invites() repository.InviteRepository   { return inviteRepo{t.st} }
func (t *tx) Events() repository.EventRepository     { return eventRepo{t.st} }

// ============================================================
// users
// ============================================================

type userRepo struct{ st *state }

func (r userRepo) IDExists(_ context.Context, id string) (bool, error) {
	_, ok := r.st.users[id]
	return ok, nil
}

func (r userRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	u, ok := r.st.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r userRepo) FindByUsername(_ context.Context, username string) (*model.User, error) {
	id, ok := r.st.usernames[username]
	if !ok {
		return nil, nil
	}
	u := r.st.users[id]
	return &u, nil
}

func (r userRepo) Create(_ context.Context, user *model.User) error {
	if _, ok := r.st.users[user.ID]; ok {
		return fmt.Errorf("failed to insert user: %w: users_pkey", repository.ErrDuplicate)
	}
	if _, ok := r.st.usernames[user.Username]; ok {
		return fmt.Errorf("failed to insert user: %w: users_username_key", repository.ErrDuplicate)
	}
	r.st.users[user.ID] = *user
	r.st.usernames[user.Username] = user.ID
	return nil
}

// ============================================================
// sessions
// ============================================================

type sessionRepo struct{ st *state }

func (r sessionRepo) IDExists(_ context.Context, id string) (bool, error) {
	_, ok := r.st.sessions[id]
	return ok, nil
}

func (r sessionRepo) FindLatestValidByUserID(_ context.Context, userID string, now time.Time) (*model.Session, error) {
	var latest *model.Session
	for _, s := range r.st.sessions {
		if s.UserID != userID || !s.IsValidAt(now) {
			continue
		}
		if latest == nil || s.ExpirationTime.After(latest.ExpirationTime) {
			s := s
			latest = &s
		}
	}
	return latest, nil
}

func (r sessionRepo) FindValidByID(_ context.Context, id string, now time.Time) (*model.Session, error) {
	s, ok := r.st.sessions[id]
	if !ok || !s.IsValidAt(now) {
		return nil, nil
	}
	return &s, nil
}

func (r sessionRepo) FindByID(_ context.Context, id string) (*model.Session, error) {
	s, ok := r.st.sessions[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r sessionRepo) Create(_ context.Context, session *model.Session) error {
	if _, ok := r.st.sessions[session.ID]; ok {
		return fmt.Errorf("failed to create session: %w: sessions_pkey", repository.ErrDuplicate)
	}
	if _, ok := r.st.users[session.UserID]; !ok {
		return fmt.Errorf("failed to create session: %w: user %s", ErrForeignKey, session.UserID)
	}
	r.st.sessions[session.ID] = *session
	return nil
}

func (r sessionRepo) UpdateExpiration(_ context.Context, id string, expiration, lastActivity time.Time) error {
	s, ok := r.st.sessions[id]
	if !ok {
		return nil
	}
	s.ExpirationTime = expiration
	s.LastActivityTime = lastActivity
	r.st.sessions[id] = s
	return nil
}

func (r sessionRepo) DeleteExpiredBefore(_ context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	for id, s := range r.st.sessions {
		if s.ExpirationTime.Before(cutoff) {
			delete(r.st.sessions, id)
			deleted++
		}
	}
	return deleted, nil
}

// ============================================================
// orgs
// ============================================================

type orgRepo struct{ st *state }

func (r orgRepo) IDExists(_ context.Context, id string) (bool, error) {
	_, ok := r.st.orgs[id]
	return ok, nil
}

func (r orgRepo) FindByID(_ context.Context, id string) (*model.Org, error) {
	o, ok := r.st.orgs[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (r orgRepo) ListByUserID(_ context.Context, userID string) ([]*model.Org, error) {
	var orgs []*model.Org
	for orgID, members := range r.st.orgMembers {
		if _, ok := members[userID]; !ok {
			continue
		}
		o := r.st.orgs[orgID]
		orgs = append(orgs, &o)
	}
	sort.Slice(orgs, func(i, j int) bool {
		if orgs[i].Name != orgs[j].Name {
			return orgs[i].Name < orgs[j].Name
		}
		return orgs[i].ID < orgs[j].ID
	})
	return orgs, nil
}

func (r orgRepo) Create(_ context.Context, org *model.Org) error {
	if _, ok := r.st.orgs[org.ID]; ok {
		return fmt.Errorf("failed to create org: %w: orgs_pkey", repository.ErrDuplicate)
	}
	if _, ok := r.st.users[org.OwnerID]; !ok {
		return fmt.Errorf("failed to create org: %w: user %s", ErrForeignKey, org.OwnerID)
	}
	r.st.orgs[org.ID] = *org
	return nil
}

func (r orgRepo) Delete(_ context.Context, id string) error {
	if len(r.st.orgMembers[id]) > 0 {
		return fmt.Errorf("failed to delete org: %w: org_memberships remain", ErrForeignKey)
	}
	for _, team := range r.st.teams {
		if team.OrgID == id {
			return fmt.Errorf("failed to delete org: %w: teams remain", ErrForeignKey)
		}
	}
	delete(r.st.orgs, id)
	delete(r.st.orgMembers, id)
	return nil
}

func (r orgRepo) AddMember(_ context.Context, m model.OrgMembership) error {
	if _, ok := r.st.orgs[m.OrgID]; !ok {
		return fmt.Errorf("failed to add org member: %w: org %s", ErrForeignKey, m.OrgID)
	}
	if _, ok := r.st.users[m.UserID]; !ok {
		return fmt.Errorf("failed to add org member: %w: user %s", ErrForeignKey, m.UserID)
	}
	members := r.st.orgMembers[m.OrgID]
	if members == nil {
		members = make(map[string]time.Time)
		r.st.orgMembers[m.OrgID] = members
	}
	if _, ok := members[m.UserID]; ok {
		return fmt.Errorf("failed to add org member: %w: org_memberships_pkey", repository.ErrDuplicate)
	}
	members[m.UserID] = m.EntryTime
	return nil
}

func (r orgRepo) IsMember(_ context.Context, userID, orgID string) (bool, error) {
	_, ok := r.st.orgMembers[orgID][userID]
	return ok, nil
}

func (r orgRepo) RemoveMember(_ context.Context, userID, orgID string) (bool, error) {
	members := r.st.orgMembers[orgID]
	if _, ok := members[userID]; !ok {
		return false, nil
	}
	delete(members, userID)
	return true, nil
}

func (r orgRepo) RemoveAllMembers(_ context.Context, orgID string) error {
	delete(r.st.orgMembers, orgID)
	return nil
}

func (r orgRepo) ListMembers(_ context.Context, orgID string) ([]model.OrgMember, error) {
	org := r.st.orgs[orgID]
	var members []model.OrgMember
	for userID, entry := range r.st.orgMembers[orgID] {
		members = append(members, model.OrgMember{
			UserID:    userID,
			Username:  r.st.users[userID].Username,
			EntryTime: entry,
			IsOwner:   org.OwnerID == userID,
		})
	}
	sort.Slice(members, func(i, j int) bool {
		if !members[i].EntryTime.Equal(members[j].EntryTime) {
			return members[i].EntryTime.Before(members[j].EntryTime)
		}
		return members[i].Username < members[j].Username
	})
	return members, nil
}

// ============================================================
// teams
// ============================================================

type teamRepo struct{ st *state }

func (r teamRepo) IDExists(_ context.Context, id string) (bool, error) {
	_, ok := r.st.teams[id]
	return ok, nil
}

func (r teamRepo) FindByID(_ context.Context, id string) (*model.Team, error) {
	t, ok := r.st.teams[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (r teamRepo) ListByOrgID(_ context.Context, orgID string) ([]*model.Team, error) {
	var teams []*model.Team
	for _, t := range r.st.teams {
		if t.OrgID != orgID {
			continue
		}
		t := t
		teams = append(teams, &t)
	}
	sort.Slice(teams, func(i, j int) bool {
		if teams[i].Name != teams[j].Name {
			return teams[i].Name < teams[j].Name
		}
		return teams[i].ID < teams[j].ID
	})
	return teams, nil
}

func (r teamRepo) Create(_ context.Context, team *model.Team) error {
	if _, ok := r.st.teams[team.ID]; ok {
		return fmt.Errorf("failed to create team: %w: teams_pkey", repository.ErrDuplicate)
	}
	if _, ok := r.st.orgs[team.OrgID]; !ok {
		return fmt.Errorf("failed to create team: %w: org %s", ErrForeignKey, team.OrgID)
	}
	if _, ok := r.st.users[team.OwnerID]; !ok {
		return fmt.Errorf("failed to create team: %w: user %s", ErrForeignKey, team.OwnerID)
	}
	r.st.teams[team.ID] = *team
	return nil
}

func (r teamRepo) Delete(_ context.Context, id string) error {
	if len(r.st.teamMembers[id]) > 0 {
		return fmt.Errorf("failed to delete team: %w: team_memberships remain", ErrForeignKey)
	}
	if len(r.st.teamEvents[id]) > 0 {
		return fmt.Errorf("failed to delete team: %w: team_events remain", ErrForeignKey)
	}
	for _, inv := range r.st.invites {
		if inv.TeamID == id {
			return fmt.Errorf("failed to delete team: %w: team_invites remain", ErrForeignKey)
		}
	}
	delete(r.st.teams, id)
	delete(r.st.teamMembers, id)
	delete(r.st.teamEvents, id)
	return nil
}

func (r teamRepo) AddMember(_ context.Context, m model.TeamMembership) error {
	if _, ok := r.st.teams[m.TeamID]; !ok {
		return fmt.Errorf("failed to add team member: %w: team %s", ErrForeignKey, m.TeamID)
	}
	if _, ok := r.st.users[m.UserID]; !ok {
		return fmt.Errorf("failed to add team member: %w: user %s", ErrForeignKey, m.UserID)
	}
	members := r.st.teamMembers[m.TeamID]
	if members == nil {
		members = make(map[string]bool)
		r.st.teamMembers[m.TeamID] = members
	}
	if _, ok := members[m.UserID]; ok {
		return fmt.Errorf("failed to add team member: %w: team_memberships_pkey", repository.ErrDuplicate)
	}
	members[m.UserID] = m.IsAdmin
	return nil
}

func (r teamRepo) FindMembership(_ context.Context, userID, teamID string) (*model.TeamMembership, error) {
	isAdmin, ok := r.st.teamMembers[teamID][userID]
	if !ok {
		return nil, nil
	}
	return &model.TeamMembership{UserID: userID, TeamID: teamID, IsAdmin: isAdmin}, nil
}

func (r teamRepo) UpdateMemberRole(_ context.Context, userID, teamID string, isAdmin bool) error {
	members := r.st.teamMembers[teamID]
	if _, ok := members[userID]; ok {
		members[userID] = isAdmin
	}
	return nil
}

func (r teamRepo) RemoveMember(_ context.Context, userID, teamID string) (bool, error) {
	members := r.st.teamMembers[teamID]
	if _, ok := members[userID]; !ok {
		return false, nil
	}
	delete(members, userID)
	return true, nil
}

func (r teamRepo) RemoveAllMembers(_ context.Context, teamID string) error {
	delete(r.st.teamMembers, teamID)
	return nil
}

func (r teamRepo) RemoveMemberFromOrgTeams(_ context.Context, userID, orgID string) error {
	for teamID, team := range r.st.teams {
		if team.OrgID == orgID {
			delete(r.st.teamMembers[teamID], userID)
		}
	}
	return nil
}

func (r teamRepo) ListMembers(_ context.Context, teamID string) ([]repository.TeamMemberRow, error) {
	var rows []repository.TeamMemberRow
	for userID, isAdmin := range r.st.teamMembers[teamID] {
		rows = append(rows, repository.TeamMemberRow{
			TeamMembership: model.TeamMembership{UserID: userID, TeamID: teamID, IsAdmin: isAdmin},
			Username:       r.st.users[userID].Username,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Username < rows[j].Username })
	return rows, nil
}

// ============================================================
// invites
// ============================================================

type inviteRepo struct{ st *state }

func (r inviteRepo) IDExists(_ context.Context, id string) (bool, error) {
	_, ok := r.st.invites[id]
	return ok, nil
}

func (r inviteRepo) Create(_ context.Context, invite *model.TeamInvite) error {
	if _, ok := r.st.invites[invite.ID]; ok {
		return fmt.Errorf("failed to create invite: %w: team_invites_pkey", repository.ErrDuplicate)
	}
	if _, ok := r.st.teams[invite.TeamID]; !ok {
		return fmt.Errorf("failed to create invite: %w: team %s", ErrForeignKey, invite.TeamID)
	}
	r.st.invites[invite.ID] = *invite
	return nil
}

func (r inviteRepo) FindByIDForUpdate(_ context.Context, id string) (*model.TeamInvite, error) {
	inv, ok := r.st.invites[id]
	if !ok {
		return nil, nil
	}
	return &inv, nil
}

func (r inviteRepo) MarkUsed(_ context.Context, id string) error {
	inv, ok := r.st.invites[id]
	if !ok {
		return nil
	}
	inv.Used = true
	r.st.invites[id] = inv
	return nil
}

func (r inviteRepo) DeleteByTeamID(_ context.Context, teamID string) error {
	for id, inv := range r.st.invites {
		if inv.TeamID == teamID {
			delete(r.st.invites, id)
		}
	}
	return nil
}

func (r inviteRepo) DeleteCreatedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	for id, inv := range r.st.invites {
		if inv.CreateTime.Before(cutoff) {
			delete(r.st.invites, id)
			deleted++
		}
	}
	return deleted, nil
}

// ============================================================
// events
// ============================================================

type eventRepo struct{ st *state }

func (r eventRepo) assignments(kind model.TargetKind) (map[string]idSet, error) {
	switch kind {
	case model.TargetUser:
		return r.st.userEvents, nil
	case model.TargetTeam:
		return r.st.teamEvents, nil
	default:
		return nil, fmt.Errorf("unknown assignment target kind: %q", kind)
	}
}

func (r eventRepo) ownerExists(target model.AssignmentTarget) bool {
	switch target.Kind {
	case model.TargetUser:
		_, ok := r.st.users[target.ID]
		return ok
	case model.TargetTeam:
		_, ok := r.st.teams[target.ID]
		return ok
	}
	return false
}

func (r eventRepo) IDExists(_ context.Context, id string) (bool, error) {
	_, ok := r.st.events[id]
	return ok, nil
}

func (r eventRepo) ListPriorities(_ context.Context) ([]model.EventPriority, error) {
	return slices.Clone(r.st.priorities), nil
}

func (r eventRepo) FindPriorityByName(_ context.Context, name string) (*model.EventPriority, error) {
	for _, p := range r.st.priorities {
		if p.Name == name {
			p := p
			return &p, nil
		}
	}
	return nil, nil
}

func (r eventRepo) priorityByID(id string) (model.EventPriority, bool) {
	for _, p := range r.st.priorities {
		if p.ID == id {
			return p, true
		}
	}
	return model.EventPriority{}, false
}

func (r eventRepo) FindByID(_ context.Context, id string) (*model.Event, error) {
	e, ok := r.st.events[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (r eventRepo) Create(_ context.Context, e *model.Event) error {
	if _, ok := r.st.events[e.ID]; ok {
		return fmt.Errorf("failed to create event: %w: events_pkey", repository.ErrDuplicate)
	}
	if _, ok := r.priorityByID(e.PriorityID); !ok {
		return fmt.Errorf("failed to create event: %w: priority %s", ErrForeignKey, e.PriorityID)
	}
	r.st.events[e.ID] = *e
	return nil
}

func (r eventRepo) Update(_ context.Context, e *model.Event) error {
	if _, ok := r.st.events[e.ID]; !ok {
		return nil
	}
	if _, ok := r.priorityByID(e.PriorityID); !ok {
		return fmt.Errorf("failed to update event: %w: priority %s", ErrForeignKey, e.PriorityID)
	}
	r.st.events[e.ID] = *e
	return nil
}

func (r eventRepo) ListAssignedIDs(_ context.Context, target model.AssignmentTarget) ([]string, error) {
	byOwner, err := r.assignments(target.Kind)
	if err != nil {
		return nil, err
	}
	ids := slices.Collect(maps.Keys(byOwner[target.ID]))
	sort.Strings(ids)
	return ids, nil
}

func (r eventRepo) ListByTarget(_ context.Context, target model.AssignmentTarget) ([]model.EventWithPriority, error) {
	byOwner, err := r.assignments(target.Kind)
	if err != nil {
		return nil, err
	}

	var events []model.EventWithPriority
	for id := range byOwner[target.ID] {
		e := r.st.events[id]
		p, _ := r.priorityByID(e.PriorityID)
		events = append(events, model.EventWithPriority{Event: e, Priority: p})
	}
	sort.Slice(events, func(i, j int) bool {
		if !events[i].StartTime.Equal(events[j].StartTime) {
			return events[i].StartTime.Before(events[j].StartTime)
		}
		return strings.Compare(events[i].ID, events[j].ID) < 0
	})
	return events, nil
}

func (r eventRepo) ListTargets(_ context.Context, eventID string) ([]model.AssignmentTarget, error) {
	var targets []model.AssignmentTarget
	for _, kind := range []model.TargetKind{model.TargetUser, model.TargetTeam} {
		byOwner, _ := r.assignments(kind)
		var owners []string
		for owner, set := range byOwner {
			if _, ok := set[eventID]; ok {
				owners = append(owners, owner)
			}
		}
		sort.Strings(owners)
		for _, owner := range owners {
			targets = append(targets, model.AssignmentTarget{Kind: kind, ID: owner})
		}
	}
	return targets, nil
}

func (r eventRepo) Assign(_ context.Context, target model.AssignmentTarget, eventID string) error {
	byOwner, err := r.assignments(target.Kind)
	if err != nil {
		return err
	}
	if !r.ownerExists(target) {
		return fmt.Errorf("failed to assign event: %w: %s %s", ErrForeignKey, target.Kind, target.ID)
	}
	if _, ok := r.st.events[eventID]; !ok {
		return fmt.Errorf("failed to assign event: %w: event %s", ErrForeignKey, eventID)
	}
	set := byOwner[target.ID]
	if set == nil {
		set = make(idSet)
		byOwner[target.ID] = set
	}
	set[eventID] = struct{}{}
	return nil
}

func (r eventRepo) Unassign(_ context.Context, target model.AssignmentTarget, eventID string) error {
	byOwner, err := r.assignments(target.Kind)
	if err != nil {
		return err
	}
	delete(byOwner[target.ID], eventID)
	return nil
}

func (r eventRepo) UnassignAll(_ context.Context, target model.AssignmentTarget) ([]string, error) {
	byOwner, err := r.assignments(target.Kind)
	if err != nil {
		return nil, err
	}
	ids := slices.Collect(maps.Keys(byOwner[target.ID]))
	sort.Strings(ids)
	delete(byOwner, target.ID)
	return ids, nil
}

func (r eventRepo) isAssigned(eventID string) bool {
	for _, set := range r.st.userEvents {
		if _, ok := set[eventID]; ok {
			return true
		}
	}
	for _, set := range r.st.teamEvents {
		if _, ok := set[eventID]; ok {
			return true
		}
	}
	return false
}

func (r eventRepo) DeleteOrphans(_ context.Context, ids []string) ([]string, error) {
	var deleted []string
	for _, id := range ids {
		if _, ok := r.st.events[id]; !ok || r.isAssigned(id) {
			continue
		}
		delete(r.st.events, id)
		deleted = append(deleted, id)
	}
	return deleted, nil
}

func (r eventRepo) DeleteAllOrphans(_ context.Context) (int64, error) {
	var deleted int64
	for id := range r.st.events {
		if r.isAssigned(id) {
			continue
		}
		delete(r.st.events, id)
		deleted++
	}
	return deleted, nil
}

// compile-time interface check
var _ repository.Store = (*Store)(nil)
var _ repository.Tx = (*tx)(nil)
