package compile

import (
	"strings"

	"tracq/internal/query"
)

// fieldSpec is one capability-table entry: how a logical field maps onto a
// backend and which expression shapes it accepts.
type fieldSpec struct {
	wire   string          // search wire name
	update string          // update payload key ("" = not updatable)
	kind   query.FieldKind // list-combination rule
	user   bool            // user-valued, @me alias substitution applies
	match  bool            // accepts match expressions
	ranged bool            // accepts numeric/time range expressions
	exists bool            // supports presence/absence queries
	order  string          // wire order key ("" = not orderable)
	list   bool            // collection-valued update target
	in     string          // GitHub free-text scope (in:title, in:comments)
	no     bool            // GitHub no:<qualifier> existence support
	create bool            // settable at creation only, not on updates
}

// Bugzilla wire operator names for match expressions; the advanced search
// API supports the full operator set.
var bugzillaMatchOps = map[query.MatchOp]string{
	query.OpContains:     "casesubstring",
	query.OpIContains:    "substring",
	query.OpNotIContains: "notsubstring",
	query.OpEquals:       "equals",
	query.OpNotEquals:    "notequals",
	query.OpRegexp:       "regexp",
	query.OpNotRegexp:    "notregexp",
}

var bugzillaRangeOps = map[query.RangeOp]string{
	query.RangeLt: "lessthan",
	query.RangeLe: "lessthaneq",
	query.RangeEq: "equals",
	query.RangeNe: "notequals",
	query.RangeGe: "greaterthaneq",
	query.RangeGt: "greaterthan",
}

var bugzillaFields = map[string]fieldSpec{
	"id":         {wire: "bug_id", kind: query.KindID, ranged: true, order: "bug_id"},
	"alias":      {wire: "alias", update: "alias", match: true, exists: true, list: true},
	"summary":    {wire: "short_desc", update: "summary", match: true, order: "short_desc"},
	"status":     {wire: "bug_status", update: "status", match: true, order: "bug_status"},
	"resolution": {wire: "resolution", update: "resolution", match: true, order: "resolution"},
	"assignee":   {wire: "assigned_to", update: "assigned_to", user: true, match: true, order: "assigned_to"},
	"creator":    {wire: "reporter", user: true, match: true, order: "reporter"},
	"cc":         {wire: "cc", update: "cc", user: true, match: true, exists: true, list: true},
	"commenter":  {wire: "commenter", user: true, match: true},
	"comment":    {wire: "longdesc", match: true},
	"created":    {wire: "creation_ts", kind: query.KindTime, ranged: true, order: "opendate"},
	"updated":    {wire: "delta_ts", kind: query.KindTime, ranged: true, order: "changeddate"},
	"comments":   {wire: "longdescs.count", kind: query.KindID, ranged: true},
	"votes":      {wire: "votes", kind: query.KindID, ranged: true, order: "votes"},
	"priority":   {wire: "priority", update: "priority", match: true, order: "priority"},
	"severity":   {wire: "bug_severity", update: "severity", match: true, order: "bug_severity"},
	"component":  {wire: "component", update: "component", match: true, order: "component"},
	"product":    {wire: "product", update: "product", match: true, order: "product"},
	"version":    {wire: "version", update: "version", match: true},
	"platform":   {wire: "platform", update: "platform", match: true},
	"os":         {wire: "op_sys", update: "op_sys", match: true},
	"labels":     {wire: "keywords", update: "keywords", match: true, exists: true, list: true},
	"blocks":     {wire: "blocked", update: "blocks", kind: query.KindID, ranged: true, exists: true, list: true},
	"depends":    {wire: "dependson", update: "depends_on", kind: query.KindID, ranged: true, exists: true, list: true},
	"whiteboard": {wire: "whiteboard", update: "whiteboard", match: true, exists: true},
	"milestone":  {wire: "target_milestone", update: "target_milestone", match: true, exists: true, order: "target_milestone"},
	"url":        {wire: "bug_file_loc", update: "url", match: true, exists: true},
	// Creation only; searching comment text goes through "comment".
	"description": {update: "description", create: true},
}

// Redmine-like filters use prefix operators on query-string parameters;
// only substring and equality semantics exist on the wire.
var redmineMatchOps = map[query.MatchOp]string{
	query.OpIContains:    "~",
	query.OpNotIContains: "!~",
	query.OpEquals:       "",
	query.OpNotEquals:    "!",
}

var redmineRangeOps = map[query.RangeOp]string{
	query.RangeLt: "<",
	query.RangeLe: "<=",
	query.RangeEq: "",
	query.RangeNe: "!",
	query.RangeGe: ">=",
	query.RangeGt: ">",
}

var redmineFields = map[string]fieldSpec{
	"id":       {wire: "issue_id", kind: query.KindID, ranged: true, order: "id"},
	"summary":  {wire: "subject", update: "subject", match: true, order: "subject"},
	"status":   {wire: "status_id", update: "status_id", match: true, order: "status"},
	"assignee": {wire: "assigned_to_id", update: "assigned_to_id", user: true, match: true, exists: true},
	"creator":  {wire: "author_id", user: true, match: true},
	"created":  {wire: "created_on", kind: query.KindTime, ranged: true, order: "created_on"},
	"updated":  {wire: "updated_on", kind: query.KindTime, ranged: true, order: "updated_on"},
	"closed":   {wire: "closed_on", kind: query.KindTime, ranged: true, order: "closed_on"},
	"priority": {wire: "priority_id", update: "priority_id", match: true, order: "priority"},
	"version":  {wire: "fixed_version_id", update: "fixed_version_id", match: true, exists: true},
	"cc":       {wire: "watcher_id", update: "watcher_user_ids", user: true, match: true, list: true},
	"comment":  {wire: "notes", update: "notes", match: true},
	// Creation only.
	"description": {update: "description", create: true},
}

// GitHub search qualifiers support equality, negation, and free-text terms;
// ranges use the qualifier comparison syntax.
var githubMatchOps = map[query.MatchOp]string{
	query.OpIContains: "",
	query.OpEquals:    "",
	query.OpNotEquals: "-",
}

var githubRangeOps = map[query.RangeOp]string{
	query.RangeLt: "<",
	query.RangeLe: "<=",
	query.RangeEq: "",
	query.RangeGe: ">=",
	query.RangeGt: ">",
}

var githubFields = map[string]fieldSpec{
	"summary":   {wire: "", update: "title", match: true, in: "title"},
	"comment":   {wire: "", match: true, in: "comments"},
	"status":    {wire: "state", update: "state", match: true},
	"assignee":  {wire: "assignee", update: "assignees", user: true, match: true, exists: true, list: true, no: true},
	"creator":   {wire: "author", user: true, match: true},
	"commenter": {wire: "commenter", user: true, match: true},
	"labels":    {wire: "label", update: "labels", match: true, exists: true, list: true, no: true},
	"milestone": {wire: "milestone", update: "milestone", match: true, exists: true, no: true},
	"created":   {wire: "created", kind: query.KindTime, ranged: true, order: "created"},
	"updated":   {wire: "updated", kind: query.KindTime, ranged: true, order: "updated"},
	"closed":    {wire: "closed", kind: query.KindTime, ranged: true},
	"comments":  {wire: "comments", kind: query.KindID, ranged: true, order: "comments"},
	// Creation only; issue bodies are searched through "comment".
	"description": {update: "body", create: true},
}

func fieldTable(backend Backend) map[string]fieldSpec {
	switch backend {
	case Bugzilla:
		return bugzillaFields
	case Redmine:
		return redmineFields
	default:
		return githubFields
	}
}

// lookupField resolves a logical field name against a backend's capability
// table. Bugzilla custom fields (cf_ prefix) are accepted as match/exists
// fields without a table entry; adapters validate them against remote
// metadata.
func lookupField(backend Backend, field string) (fieldSpec, bool) {
	if backend == Bugzilla && strings.HasPrefix(field, "cf_") {
		return fieldSpec{wire: field, match: true, exists: true}, true
	}
	spec, ok := fieldTable(backend)[field]
	return spec, ok
}

// FieldKind returns the list-combination rule recorded for a field. Unknown
// fields default to text semantics; compilation rejects them later with
// full context.
func FieldKind(backend Backend, field string) query.FieldKind {
	if spec, ok := lookupField(backend, field); ok {
		return spec.kind
	}
	return query.KindText
}

// UserFields lists the wire names of user-valued fields for a backend, used
// by adapters to apply @me alias substitution.
func UserFields(backend Backend) map[string]bool {
	out := make(map[string]bool)
	for _, spec := range fieldTable(backend) {
		if spec.user {
			out[spec.wire] = true
		}
	}
	return out
}

// OrderKey translates a logical order key to the backend's wire form.
func OrderKey(backend Backend, o query.Order) (string, error) {
	spec, ok := lookupField(backend, o.Field)
	if !ok || spec.order == "" {
		return "", unsupported(backend, o.Field, "order")
	}
	switch backend {
	case Bugzilla:
		if o.Descending {
			return spec.order + " DESC", nil
		}
		return spec.order, nil
	default:
		// Redmine and GitHub both want an explicit direction suffix; the
		// GitHub adapter splits it back into sort and order parameters.
		if o.Descending {
			return spec.order + ":desc", nil
		}
		return spec.order + ":asc", nil
	}
}
