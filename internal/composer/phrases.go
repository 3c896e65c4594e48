package composer

const GeneralCategory = "General"

type Category struct {
	Name     string
	Keywords []string
	Intro    string
}

// Phrases is the wording used by the Composer. Treat a value as read-only
// once it has been handed to New.
type Phrases struct {
	// WeekdayIntros is ordered Monday first.
	WeekdayIntros [7]string
	// Categories are matched in order; the first hit wins.
	Categories     []Category
	GeneralIntro   string
	CommentPrompts []string
}

func DefaultPhrases() Phrases {
	return Phrases{
		WeekdayIntros: [7]string{
			"Kickstart your week with",
			"Take your Tuesday further with",
			"Midweek read:",
			"Almost Friday! Check out",
			"Wrap your week with",
			"Perfect weekend read:",
			"Sunday insights:",
		},
		Categories: []Category{
			{
				Name:     "AI",
				Keywords: []string{"ai", "machine learning", "deep learning"},
				Intro:    "Explore cutting-edge AI insights",
			},
			{
				Name:     "Programming",
				Keywords: []string{"programming", "code", "development", "python", "java", "c"},
				Intro:    "Sharpen your programming skills",
			},
			{
				Name:     "Web Dev",
				Keywords: []string{"web", "html", "css", "javascript", "react", "node"},
				Intro:    "Dive into web development",
			},
			{
				Name:     "Career",
				Keywords: []string{"career", "job", "interview", "resume"},
				Intro:    "Boost your career journey",
			},
		},
		GeneralIntro: "Check out this post",
		CommentPrompts: []string{
			"What's your experience with this?",
			"Drop your thoughts below 👇",
			"Have questions? Ask away!",
			"How will you apply this?",
		},
	}
}
