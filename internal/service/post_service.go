package service

import (
	"context"
	"errors"

	"messiahverse/internal/cache"
	"messiahverse/internal/models"
	"messiahverse/internal/repository"
	"messiahverse/internal/sanitize"
	"messiahverse/internal/validation"

	"gorm.io/gorm"
)

// PostService handles post creation, listing, and owner-gated updates.
type PostService struct {
	postRepo repository.PostRepository
}

type CreatePostInput struct {
	Title    *string              `json:"title"`
	Content  string               `json:"content"`
	Metadata *models.PostMetadata `json:"metadata"`
}

// UpdatePostInput is a partial patch: nil fields are left untouched.
type UpdatePostInput struct {
	Title    *string              `json:"title"`
	Content  *string              `json:"content"`
	Metadata *models.PostMetadata `json:"metadata"`
}

const (
	// DefaultPostPageSize bounds unpaginated list requests.
	DefaultPostPageSize = 20
	MaxPostPageSize     = 100
)

func NewPostService(postRepo repository.PostRepository) *PostService {
	return &PostService{postRepo: postRepo}
}

// CreatePost validates and sanitizes the input, then persists the post for
// the authenticated author.
func (s *PostService) CreatePost(ctx context.Context, identity models.Identity, in CreatePostInput) (*models.Post, error) {
	if identity.UserID == 0 {
		return nil, models.NewUnauthenticatedError("Sign in to create posts")
	}
	if err := validation.ValidatePost(in.Content, in.Title); err != nil {
		return nil, err
	}

	post := &models.Post{
		Content:  sanitize.Content(in.Content),
		AuthorID: identity.UserID,
	}
	if in.Title != nil {
		post.Title = *in.Title
	}
	if in.Metadata != nil {
		post.Metadata = *in.Metadata
	}

	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}
	return s.postRepo.GetByID(ctx, post.ID)
}

func (s *PostService) GetPost(ctx context.Context, id uint) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError("Post", id)
	}
	if err != nil {
		return nil, err
	}
	return post, nil
}

// ListPosts returns posts newest first. The default first page is served
// through the cache.
func (s *PostService) ListPosts(ctx context.Context, limit, offset int) ([]*models.Post, error) {
	if limit <= 0 {
		limit = DefaultPostPageSize
	}
	if limit > MaxPostPageSize {
		limit = MaxPostPageSize
	}
	if offset < 0 {
		offset = 0
	}

	if limit == DefaultPostPageSize && offset == 0 {
		var posts []*models.Post
		err := cache.Aside(ctx, cache.PostsListKey, &posts, cache.PostsListTTL, func() error {
			got, err := s.postRepo.List(ctx, limit, offset)
			if err != nil {
				return err
			}
			posts = got
			return nil
		})
		return posts, err
	}

	return s.postRepo.List(ctx, limit, offset)
}

// UpdatePost applies a partial patch to a post the identity owns. Metadata
// is merged field-wise so a patch carrying only layout does not wipe images.
func (s *PostService) UpdatePost(ctx context.Context, identity models.Identity, id uint, in UpdatePostInput) (*models.Post, error) {
	if identity.UserID == 0 {
		return nil, models.NewUnauthenticatedError("Sign in to edit posts")
	}

	post, err := s.postRepo.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError("Post", id)
	}
	if err != nil {
		return nil, err
	}
	if !identity.IsOwner(post.AuthorID) {
		return nil, models.NewForbiddenError("You can only edit your own posts")
	}

	if in.Content != nil {
		if err := validation.ValidatePost(*in.Content, in.Title); err != nil {
			return nil, err
		}
		post.Content = sanitize.Content(*in.Content)
	} else if in.Title != nil {
		if err := validation.ValidatePost(post.Content, in.Title); err != nil {
			return nil, err
		}
	}
	if in.Title != nil {
		post.Title = *in.Title
	}
	if in.Metadata != nil {
		mergeMetadata(&post.Metadata, in.Metadata)
	}

	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

func mergeMetadata(dst *models.PostMetadata, patch *models.PostMetadata) {
	if patch.Images != nil {
		dst.Images = patch.Images
	}
	if patch.Format != "" {
		dst.Format = patch.Format
	}
	if patch.Layout != "" {
		dst.Layout = patch.Layout
	}
	if patch.FeaturedImage != "" {
		dst.FeaturedImage = patch.FeaturedImage
	}
	if patch.ImagePositions != nil {
		dst.ImagePositions = patch.ImagePositions
	}
}
