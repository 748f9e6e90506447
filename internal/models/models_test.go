package models

import "testing"

func TestBaseModelBeforeCreateGeneratesID(t *testing.T) {
	var base BaseModel
	if err := base.BeforeCreate(nil); err != nil {
		t.Fatalf("before create: %v", err)
	}
	if base.ID == "" {
		t.Fatal("expected base model ID to be generated")
	}
}

func TestEmbeddedModelsUseBaseBeforeCreate(t *testing.T) {
	cases := []struct {
		name  string
		model func() *BaseModel
	}{
		{"user", func() *BaseModel {
			u := &User{}
			return &u.BaseModel
		}},
		{"grove", func() *BaseModel {
			g := &Grove{}
			return &g.BaseModel
		}},
		{"grove_member", func() *BaseModel {
			m := &GroveMember{}
			return &m.BaseModel
		}},
		{"profile", func() *BaseModel {
			p := &Profile{}
			return &p.BaseModel
		}},
		{"audio_room", func() *BaseModel {
			r := &AudioRoom{}
			return &r.BaseModel
		}},
		{"speaker_queue_entry", func() *BaseModel {
			e := &SpeakerQueueEntry{}
			return &e.BaseModel
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			base := tc.model()
			if err := base.BeforeCreate(nil); err != nil {
				t.Fatalf("before create: %v", err)
			}
			if base.ID == "" {
				t.Fatal("expected generated ID")
			}
		})
	}
}

func TestTraitVectorOrder(t *testing.T) {
	p := Profile{
		Openness:          10,
		Conscientiousness: 20,
		Extraversion:      30,
		Agreeableness:     40,
		Neuroticism:       50,
	}
	got := p.TraitVector()
	want := [5]int{10, 20, 30, 40, 50}
	if got != want {
		t.Fatalf("trait vector = %v, want %v", got, want)
	}
}
