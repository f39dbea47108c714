package scripts

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/clinic-autoresponder/internal/embedding"
)

type recordingEmbedder struct {
	calls [][]string
	err   error
}

func (r *recordingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	r.calls = append(r.calls, texts)
	if r.err != nil {
		return nil, r.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i + 1)}
	}
	return out, nil
}

func validInput() Input {
	return Input{
		QuestionAr: " ما هي ساعات العمل؟ ",
		QuestionFr: "Quels sont vos horaires?",
		ResponseAr: "من 9 إلى 7",
		ResponseFr: "De 9h à 19h",
		Keywords:   []string{"horaires", " Horaires ", "", "heures"},
		Category:   "hours",
	}
}

func TestServiceCreateEmbedsBothLanguages(t *testing.T) {
	emb := &recordingEmbedder{}
	svc := NewService(NewMemoryRepository(), emb, nil)

	s, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	assert.True(t, s.Active)
	assert.Equal(t, "ما هي ساعات العمل؟", s.QuestionAr)
	assert.Equal(t, []string{"horaires", "heures"}, s.Keywords)
	assert.Equal(t, []float32{1}, s.EmbeddingAr)
	assert.Equal(t, []float32{2}, s.EmbeddingFr)
	require.Len(t, emb.calls, 1)
	assert.Equal(t, []string{"ما هي ساعات العمل؟", "Quels sont vos horaires?"}, emb.calls[0])
}

func TestServiceCreateValidation(t *testing.T) {
	svc := NewService(NewMemoryRepository(), nil, nil)
	in := validInput()
	in.ResponseFr = " "
	_, err := svc.Create(context.Background(), in)
	assert.ErrorIs(t, err, ErrInvalidScript)
}

func TestServiceCreateEmbeddingFailure(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo, &recordingEmbedder{err: embedding.ErrEmbeddingFailed}, nil)
	_, err := svc.Create(context.Background(), validInput())
	assert.ErrorIs(t, err, embedding.ErrEmbeddingFailed)
	all, _ := repo.List(context.Background())
	assert.Empty(t, all)
}

func TestServiceUpdateReembedsOnlyWhenQuestionsChange(t *testing.T) {
	emb := &recordingEmbedder{}
	svc := NewService(NewMemoryRepository(), emb, nil)
	ctx := context.Background()

	s, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	in := validInput()
	in.ResponseFr = "De 8h à 18h"
	inactive := false
	in.Active = &inactive
	updated, err := svc.Update(ctx, s.ID, in)
	require.NoError(t, err)
	assert.Len(t, emb.calls, 1)
	assert.False(t, updated.Active)
	assert.Equal(t, "De 8h à 18h", updated.ResponseFr)

	in.QuestionFr = "À quelle heure ouvrez-vous?"
	_, err = svc.Update(ctx, s.ID, in)
	require.NoError(t, err)
	assert.Len(t, emb.calls, 2)
}

func TestServiceUpdateAndDeleteMissing(t *testing.T) {
	svc := NewService(NewMemoryRepository(), nil, nil)
	_, err := svc.Update(context.Background(), "missing", validInput())
	assert.True(t, errors.Is(err, ErrScriptNotFound))
	assert.ErrorIs(t, svc.Delete(context.Background(), "missing"), ErrScriptNotFound)
}

func TestSeedDemoPopulatesEmptyLibraryOnce(t *testing.T) {
	embedder := &recordingEmbedder{}
	svc := NewService(NewMemoryRepository(), embedder, nil)

	n, err := svc.SeedDemo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(DemoScripts()), n)
	assert.Len(t, embedder.calls, n)

	list, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, n)
	for _, s := range list {
		assert.True(t, s.Active)
		assert.NotEmpty(t, s.EmbeddingFr)
	}

	n, err = svc.SeedDemo(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
