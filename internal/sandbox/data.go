package sandbox

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/alexjbarnes/ampwidgets/internal/graph"
	"github.com/segmentio/ksuid"
)

// graphTimeLayout is the provider's timestamp format.
const graphTimeLayout = "2006-01-02T15:04:05-0700"

// object is an Open Graph object with its likes and comments.
type object struct {
	graph.OGObject
	url      string
	likes    []string
	comments []graph.Comment
}

// Data holds the Graph content served by the sandbox.
type Data struct {
	mu      sync.RWMutex
	objects map[string]*object
	byURL   map[string]*object
	users   map[string]graph.Profile
	now     func() time.Time
}

// NewData returns empty content.
func NewData() *Data {
	return &Data{
		objects: make(map[string]*object),
		byURL:   make(map[string]*object),
		users:   make(map[string]graph.Profile),
		now:     time.Now,
	}
}

// Seed loads fixture users and objects.
func (d *Data) Seed(f *Fixtures) {
	if f == nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, u := range f.Users {
		d.users[u.ID] = graph.Profile{ID: u.ID, Name: u.Name}
	}

	for _, fo := range f.Objects {
		o := d.objectForURLLocked(fo.URL, fo.ID)
		if fo.Title != "" {
			o.Title = fo.Title
		}

		if fo.Type != "" {
			o.Type = fo.Type
		}

		for _, uid := range fo.Likes {
			if !slices.Contains(o.likes, uid) {
				o.likes = append(o.likes, uid)
			}
		}

		for _, fc := range fo.Comments {
			c := graph.Comment{
				ID:          fc.ID,
				Message:     fc.Message,
				From:        d.profileLocked(fc.From),
				CreatedTime: fc.CreatedTime,
			}

			if c.ID == "" {
				c.ID = o.ID + "_" + ksuid.New().String()
			}

			if c.CreatedTime == "" {
				c.CreatedTime = d.now().UTC().Format(graphTimeLayout)
			}

			o.comments = append(o.comments, c)
		}
	}
}

// AddUser registers a profile.
func (d *Data) AddUser(p graph.Profile) {
	d.mu.Lock()
	d.users[p.ID] = p
	d.mu.Unlock()
}

// Profile returns the profile for id, falling back to the id as name.
func (d *Data) Profile(id string) graph.Profile {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.profileLocked(id)
}

func (d *Data) profileLocked(id string) graph.Profile {
	if p, ok := d.users[id]; ok {
		return p
	}

	return graph.Profile{ID: id, Name: id}
}

// Lookup returns the object for a URL, creating it on first sight.
func (d *Data) Lookup(rawURL string) graph.OGObject {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.objectForURLLocked(rawURL, "").OGObject
}

func (d *Data) objectForURLLocked(rawURL, id string) *object {
	if o, ok := d.byURL[rawURL]; ok {
		return o
	}

	if id == "" {
		id = ksuid.New().String()
	}

	o := &object{
		OGObject: graph.OGObject{ID: id, Title: rawURL, Type: "website"},
		url:      rawURL,
	}
	d.objects[id] = o
	d.byURL[rawURL] = o

	return o
}

// resolveLocked finds an object by id, or by URL when ref looks like
// one. Unknown URLs are created; unknown ids are not.
func (d *Data) resolveLocked(ref string) (*object, bool) {
	if o, ok := d.objects[ref]; ok {
		return o, true
	}

	if strings.Contains(ref, "://") {
		return d.objectForURLLocked(ref, ""), true
	}

	return nil, false
}

// Likes returns the profiles that like ref and the summary as seen by
// viewer.
func (d *Data) Likes(ref, viewer string) ([]graph.Profile, *graph.LikeSummary, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	o, ok := d.resolveLocked(ref)
	if !ok {
		return nil, nil, false
	}

	profiles := make([]graph.Profile, 0, len(o.likes))
	for _, uid := range o.likes {
		profiles = append(profiles, d.profileLocked(uid))
	}

	return profiles, &graph.LikeSummary{
		TotalCount: int64(len(o.likes)),
		HasLiked:   slices.Contains(o.likes, viewer),
		CanLike:    true,
	}, true
}

// SetLike records or removes userID's like on ref.
func (d *Data) SetLike(ref, userID string, liked bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	o, ok := d.resolveLocked(ref)
	if !ok {
		return false
	}

	has := slices.Contains(o.likes, userID)

	switch {
	case liked && !has:
		o.likes = append(o.likes, userID)
	case !liked && has:
		kept := o.likes[:0]
		for _, uid := range o.likes {
			if uid != userID {
				kept = append(kept, uid)
			}
		}

		o.likes = kept
	}

	return true
}

// Comments returns a copy of ref's comments, oldest first.
func (d *Data) Comments(ref string) ([]graph.Comment, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	o, ok := d.resolveLocked(ref)
	if !ok {
		return nil, false
	}

	return append([]graph.Comment(nil), o.comments...), true
}

// AddComment appends a comment by userID to ref.
func (d *Data) AddComment(ref, userID, message string) (graph.Comment, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	o, ok := d.resolveLocked(ref)
	if !ok {
		return graph.Comment{}, false
	}

	c := graph.Comment{
		ID:          o.ID + "_" + ksuid.New().String(),
		Message:     message,
		From:        d.profileLocked(userID),
		CreatedTime: d.now().UTC().Format(graphTimeLayout),
	}
	o.comments = append(o.comments, c)

	return c, true
}
