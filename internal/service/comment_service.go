package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"plantspack/internal/models"
	"plantspack/internal/notifications"
	"plantspack/internal/repository"
)

// MaxCommentLength bounds comment bodies on every tier.
const MaxCommentLength = 2000

type CommentService struct {
	comments repository.CommentRepository
	posts    *PostService
}

type CreateCommentInput struct {
	UserID   uint
	PostID   uint
	ParentID *uint
	Content  string
}

func NewCommentService(comments repository.CommentRepository, posts *PostService) *CommentService {
	return &CommentService{comments: comments, posts: posts}
}

func validateComment(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", models.NewValidationError("Comment content is required")
	}
	if utf8.RuneCountInString(content) > MaxCommentLength {
		return "", models.NewValidationError("Comment too long (max 2000 characters)")
	}
	return content, nil
}

// CreateComment adds a comment and notifies the post author, the parent
// comment's author for replies, and anyone mentioned.
func (s *CommentService) CreateComment(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	content, err := validateComment(in.Content)
	if err != nil {
		return nil, err
	}
	author, err := s.posts.activeAuthor(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	post, err := s.posts.visiblePost(ctx, in.PostID, in.UserID)
	if err != nil {
		return nil, err
	}

	var parent *models.Comment
	if in.ParentID != nil {
		parent, err = s.comments.GetByID(ctx, *in.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.PostID != post.ID {
			return nil, models.NewValidationError("Parent comment belongs to another post")
		}
	}
	if err := screen(ctx, s.posts.checker, content); err != nil {
		return nil, err
	}

	comment := &models.Comment{
		PostID:   post.ID,
		UserID:   author.ID,
		ParentID: in.ParentID,
		Content:  content,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}

	notify := s.posts.notifications
	notify.NotifyBestEffort(ctx, NotifyInput{
		RecipientID: post.UserID,
		ActorID:     author.ID,
		Type:        models.NotificationComment,
		TargetType:  models.TargetPost,
		TargetID:    post.ID,
		Message:     author.Username + " commented: " + truncate(content, 80),
	})
	if parent != nil && parent.UserID != post.UserID {
		notify.NotifyBestEffort(ctx, NotifyInput{
			RecipientID: parent.UserID,
			ActorID:     author.ID,
			Type:        models.NotificationReply,
			TargetType:  models.TargetComment,
			TargetID:    comment.ID,
			Message:     author.Username + " replied: " + truncate(content, 80),
		})
	}
	s.posts.notifyMentions(ctx, author, content, models.TargetComment, comment.ID)

	pub := author.PublicView()
	comment.User = &pub
	s.posts.publisher.PublishBroadcast(ctx, notifications.EventCommentCreated, map[string]uint{
		"post_id":    post.ID,
		"comment_id": comment.ID,
	})
	return comment, nil
}

func (s *CommentService) ListComments(ctx context.Context, postID, viewerID uint, limit, offset int) ([]*models.Comment, error) {
	if _, err := s.posts.visiblePost(ctx, postID, viewerID); err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByPost(ctx, postID, viewerID, limit, offset)
	if err != nil {
		return nil, err
	}
	for _, c := range comments {
		if c.User != nil {
			pub := c.User.PublicView()
			c.User = &pub
		}
	}
	return comments, nil
}

// UpdateComment edits the body. Owner only.
func (s *CommentService) UpdateComment(ctx context.Context, commentID, userID uint, content string) (*models.Comment, error) {
	content, err := validateComment(content)
	if err != nil {
		return nil, err
	}
	comment, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if comment.UserID != userID {
		return nil, models.NewForbiddenError("You can only edit your own comments")
	}
	if err := screen(ctx, s.posts.checker, content); err != nil {
		return nil, err
	}
	comment.Content = content
	if err := s.comments.Update(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

// DeleteComment soft-deletes a comment. Owner or admin.
func (s *CommentService) DeleteComment(ctx context.Context, commentID, userID uint) error {
	comment, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		return err
	}
	if comment.UserID != userID {
		admin := false
		if s.posts.isAdmin != nil {
			if admin, err = s.posts.isAdmin(ctx, userID); err != nil {
				return err
			}
		}
		if !admin {
			return models.NewForbiddenError("You can only delete your own comments")
		}
	}
	return s.comments.Delete(ctx, comment)
}
