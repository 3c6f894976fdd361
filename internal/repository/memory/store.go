// Package memory provides an in-memory implementation of the storage
// interfaces, used when no database is configured and as the backend for
// service and API tests. All operations are safe for concurrent use.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/web3-forum-api/internal/models"
	"github.com/web3-forum-api/internal/repository"
)

// Store keeps all forum state in maps guarded by a single RWMutex.
// Uniqueness constraints that Postgres enforces with unique indexes are
// enforced here under the write lock. Per-interface views over the
// shared state are exposed through Repositories.
type Store struct {
	mu sync.RWMutex

	users     map[string]*models.User // by address
	usernames map[string]string       // username -> address

	posts map[string]*models.Post

	comments       map[string]*models.Comment
	commentsByPost map[string][]string

	postLikes    map[string]map[string]bool // post id -> viewer set
	commentLikes map[string]map[string]bool

	follows map[string]map[string]bool // follower -> following set

	usedTx map[string]*models.UsedTransaction // by hash, lowercased

	recs        []*models.DailyRecommendation
	recDay      string
	lastRefresh time.Time

	now func() time.Time
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{
		users:          make(map[string]*models.User),
		usernames:      make(map[string]string),
		posts:          make(map[string]*models.Post),
		comments:       make(map[string]*models.Comment),
		commentsByPost: make(map[string][]string),
		postLikes:      make(map[string]map[string]bool),
		commentLikes:   make(map[string]map[string]bool),
		follows:        make(map[string]map[string]bool),
		usedTx:         make(map[string]*models.UsedTransaction),
		now:            time.Now,
	}
}

// SetClock overrides the store's time source, for tests
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Repositories wraps the store in the aggregate used by the services
func (s *Store) Repositories() *repository.Repositories {
	return &repository.Repositories{
		Post:           &postStore{s},
		Comment:        &commentStore{s},
		Like:           &likeStore{s},
		User:           &userStore{s},
		Follow:         &followStore{s},
		Transaction:    &txStore{s},
		Recommendation: &recStore{s},
	}
}

func paginate(n, limit, offset int) (int, int) {
	if offset >= n {
		return 0, 0
	}
	end := offset + limit
	if end > n {
		end = n
	}
	return offset, end
}

// --- posts ---

type postStore struct{ *Store }

func (s *postStore) Create(ctx context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *post
	s.posts[post.ID] = &cp
	return nil
}

func (s *postStore) GetByID(ctx context.Context, id string) (*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	post, ok := s.posts[id]
	if !ok || post.DeletedAt != nil {
		return nil, nil
	}
	cp := *post
	return &cp, nil
}

func (s *postStore) List(ctx context.Context, limit, offset int) ([]*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.sortedPosts(func(p *models.Post) bool { return true })
	from, to := paginate(len(all), limit, offset)
	return all[from:to], nil
}

func (s *postStore) ListByUser(ctx context.Context, address string, limit, offset int) ([]*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.sortedPosts(func(p *models.Post) bool { return p.UserAddress == address })
	from, to := paginate(len(all), limit, offset)
	return all[from:to], nil
}

func (s *postStore) ListSince(ctx context.Context, since time.Time) ([]*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sortedPosts(func(p *models.Post) bool { return !p.CreatedAt.Before(since) }), nil
}

func (s *postStore) IncrementViews(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if post, ok := s.posts[id]; ok {
		post.Views++
	}
	return nil
}

func (s *postStore) IncrementComments(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if post, ok := s.posts[id]; ok {
		post.CommentsCount++
		post.UpdatedAt = s.now()
	}
	return nil
}

func (s *postStore) FindRecentDuplicate(ctx context.Context, address, title, content string, window time.Duration) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := s.now().Add(-window)
	for _, post := range s.posts {
		if post.DeletedAt != nil {
			continue
		}
		if post.UserAddress == address && post.Title == title && post.Content == content &&
			post.CreatedAt.After(cutoff) {
			return true, nil
		}
	}
	return false, nil
}

func (s *postStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, post := range s.posts {
		if post.DeletedAt == nil {
			count++
		}
	}
	return count, nil
}

// sortedPosts returns copies of non-deleted posts matching the filter,
// newest first. Callers may mutate the returned posts freely.
func (s *postStore) sortedPosts(match func(*models.Post) bool) []*models.Post {
	out := []*models.Post{}
	for _, post := range s.posts {
		if post.DeletedAt != nil || !match(post) {
			continue
		}
		cp := *post
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// --- comments ---

type commentStore struct{ *Store }

func (s *commentStore) Create(ctx context.Context, comment *models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *comment
	s.comments[comment.ID] = &cp
	s.commentsByPost[comment.PostID] = append(s.commentsByPost[comment.PostID], comment.ID)
	return nil
}

func (s *commentStore) GetByID(ctx context.Context, id string) (*models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	comment, ok := s.comments[id]
	if !ok || comment.DeletedAt != nil {
		return nil, nil
	}
	cp := *comment
	return &cp, nil
}

func (s *commentStore) ListByPost(ctx context.Context, postID string, limit, offset int) ([]*models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := []*models.Comment{}
	for _, id := range s.commentsByPost[postID] {
		comment := s.comments[id]
		if comment == nil || comment.DeletedAt != nil {
			continue
		}
		cp := *comment
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})

	from, to := paginate(len(all), limit, offset)
	return all[from:to], nil
}

func (s *commentStore) FindRecentDuplicate(ctx context.Context, address, postID, content string, window time.Duration) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := s.now().Add(-window)
	for _, id := range s.commentsByPost[postID] {
		comment := s.comments[id]
		if comment == nil || comment.DeletedAt != nil {
			continue
		}
		if comment.UserAddress == address && comment.Content == content &&
			comment.CreatedAt.After(cutoff) {
			return true, nil
		}
	}
	return false, nil
}

func (s *commentStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, comment := range s.comments {
		if comment.DeletedAt == nil {
			count++
		}
	}
	return count, nil
}

// --- likes ---

type likeStore struct{ *Store }

func (s *likeStore) TogglePostLike(ctx context.Context, postID, address string) (bool, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[postID]
	if !ok || post.DeletedAt != nil {
		return false, 0, repository.ErrNotFound
	}

	set := s.postLikes[postID]
	if set == nil {
		set = make(map[string]bool)
		s.postLikes[postID] = set
	}

	if set[address] {
		delete(set, address)
		if post.Likes > 0 {
			post.Likes--
		}
		return false, post.Likes, nil
	}
	set[address] = true
	post.Likes++
	return true, post.Likes, nil
}

func (s *likeStore) ToggleCommentLike(ctx context.Context, commentID, address string) (bool, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	comment, ok := s.comments[commentID]
	if !ok || comment.DeletedAt != nil {
		return false, 0, repository.ErrNotFound
	}

	set := s.commentLikes[commentID]
	if set == nil {
		set = make(map[string]bool)
		s.commentLikes[commentID] = set
	}

	if set[address] {
		delete(set, address)
		if comment.Likes > 0 {
			comment.Likes--
		}
		return false, comment.Likes, nil
	}
	set[address] = true
	comment.Likes++
	return true, comment.Likes, nil
}

func (s *likeStore) PostLikesByUser(ctx context.Context, address string, postIDs []string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	liked := make(map[string]bool, len(postIDs))
	for _, id := range postIDs {
		if s.postLikes[id][address] {
			liked[id] = true
		}
	}
	return liked, nil
}

func (s *likeStore) CommentLikesByUser(ctx context.Context, address string, commentIDs []string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	liked := make(map[string]bool, len(commentIDs))
	for _, id := range commentIDs {
		if s.commentLikes[id][address] {
			liked[id] = true
		}
	}
	return liked, nil
}

func (s *likeStore) CountPostLikes(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, set := range s.postLikes {
		count += len(set)
	}
	return count, nil
}

// --- users ---

type userStore struct{ *Store }

func (s *userStore) GetOrCreate(ctx context.Context, address string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[address]
	if !ok {
		now := s.now()
		user = &models.User{Address: address, CreatedAt: now, UpdatedAt: now}
		s.users[address] = user
	}
	cp := *user
	return &cp, nil
}

func (s *userStore) GetByAddress(ctx context.Context, address string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[address]
	if !ok {
		return nil, nil
	}
	cp := *user
	return &cp, nil
}

func (s *userStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	address, ok := s.usernames[username]
	if !ok {
		return nil, nil
	}
	cp := *s.users[address]
	return &cp, nil
}

func (s *userStore) RegisterUsername(ctx context.Context, address, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[address]
	if !ok {
		return repository.ErrNotFound
	}
	if user.HasUsername {
		return repository.ErrUsernameTaken
	}
	if _, taken := s.usernames[username]; taken {
		return repository.ErrUsernameTaken
	}

	user.Username = username
	user.HasUsername = true
	user.UpdatedAt = s.now()
	s.usernames[username] = address
	return nil
}

func (s *userStore) UsernameExists(ctx context.Context, username string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.usernames[username]
	return ok, nil
}

func (s *userStore) UpdateAvatar(ctx context.Context, address, avatarURL string) error {
	return s.update(address, func(u *models.User) { u.AvatarURL = avatarURL })
}

func (s *userStore) UpdateBio(ctx context.Context, address, bio string) error {
	return s.update(address, func(u *models.User) { u.Bio = bio })
}

func (s *userStore) IncrementPosts(ctx context.Context, address string) error {
	return s.update(address, func(u *models.User) { u.PostsCount++ })
}

func (s *userStore) IncrementComments(ctx context.Context, address string) error {
	return s.update(address, func(u *models.User) { u.CommentsCount++ })
}

func (s *userStore) update(address string, apply func(*models.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[address]
	if !ok {
		return repository.ErrNotFound
	}
	apply(user)
	user.UpdatedAt = s.now()
	return nil
}

func (s *userStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}

func (s *userStore) MostActive(ctx context.Context, limit int) ([]*models.ActiveUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ranked := []*models.ActiveUser{}
	for _, user := range s.users {
		if user.PostsCount == 0 && user.CommentsCount == 0 {
			continue
		}
		ranked = append(ranked, &models.ActiveUser{
			Address:       user.Address,
			Username:      user.Username,
			PostsCount:    user.PostsCount,
			CommentsCount: user.CommentsCount,
			Reputation:    user.Reputation(),
		})
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Reputation != b.Reputation {
			return a.Reputation > b.Reputation
		}
		if a.PostsCount != b.PostsCount {
			return a.PostsCount > b.PostsCount
		}
		if a.CommentsCount != b.CommentsCount {
			return a.CommentsCount > b.CommentsCount
		}
		return a.Address < b.Address
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// --- follows ---

type followStore struct{ *Store }

func (s *followStore) Follow(ctx context.Context, follower, following string) error {
	if follower == following {
		return repository.ErrSelfFollow
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.follows[follower]
	if set == nil {
		set = make(map[string]bool)
		s.follows[follower] = set
	}
	if set[following] {
		return repository.ErrAlreadyFollowing
	}
	set[following] = true
	return nil
}

func (s *followStore) Unfollow(ctx context.Context, follower, following string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.follows[follower]
	if !set[following] {
		return repository.ErrNotFollowing
	}
	delete(set, following)
	return nil
}

func (s *followStore) IsFollowing(ctx context.Context, follower, following string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.follows[follower][following], nil
}

func (s *followStore) Following(ctx context.Context, address string, limit, offset int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := setToSorted(s.follows[address])
	from, to := paginate(len(all), limit, offset)
	return all[from:to], nil
}

func (s *followStore) Followers(ctx context.Context, address string, limit, offset int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	followers := []string{}
	for follower, set := range s.follows {
		if set[address] {
			followers = append(followers, follower)
		}
	}
	sort.Strings(followers)
	from, to := paginate(len(followers), limit, offset)
	return followers[from:to], nil
}

func (s *followStore) Friends(ctx context.Context, address string, limit, offset int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	friends := []string{}
	for following := range s.follows[address] {
		if s.follows[following][address] {
			friends = append(friends, following)
		}
	}
	sort.Strings(friends)
	from, to := paginate(len(friends), limit, offset)
	return friends[from:to], nil
}

func (s *followStore) Stats(ctx context.Context, address string) (*models.FollowStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &models.FollowStats{FollowingCount: len(s.follows[address])}
	for follower, set := range s.follows {
		if set[address] {
			stats.FollowersCount++
			if s.follows[address][follower] {
				stats.FriendsCount++
			}
		}
	}
	return stats, nil
}

func setToSorted(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for addr := range set {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}

// --- used transactions ---

type txStore struct{ *Store }

func (s *txStore) Record(ctx context.Context, tx *models.UsedTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(tx.TransactionHash)
	if _, used := s.usedTx[key]; used {
		return repository.ErrTransactionUsed
	}
	cp := *tx
	s.usedTx[key] = &cp
	return nil
}

func (s *txStore) IsUsed(ctx context.Context, hash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, used := s.usedTx[strings.ToLower(hash)]
	return used, nil
}

// --- recommendations ---

type recStore struct{ *Store }

func (s *recStore) ForDay(ctx context.Context, day time.Time) ([]*models.DailyRecommendation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.recDay != day.Format("2006-01-02") {
		return nil, nil
	}
	out := make([]*models.DailyRecommendation, len(s.recs))
	for i, rec := range s.recs {
		cp := *rec
		out[i] = &cp
	}
	return out, nil
}

func (s *recStore) ReplaceDay(ctx context.Context, day time.Time, recs []*models.DailyRecommendation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recDay = day.Format("2006-01-02")
	s.recs = make([]*models.DailyRecommendation, len(recs))
	for i, rec := range recs {
		cp := *rec
		s.recs[i] = &cp
	}
	s.lastRefresh = s.now()
	return nil
}

func (s *recStore) LastRefreshTime(ctx context.Context) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRefresh, nil
}
