package transport

type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Password string `json:"password"`
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type CreateUserRequest struct {
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Status   string `json:"status"`
}

type PatchUserRequest struct {
	FullName *string `json:"fullName"`
	Password *string `json:"password"`
	Role     *string `json:"role"`
	Status   *string `json:"status"`
}

type Page struct {
	Page       int   `json:"page"`
	Size       int   `json:"size"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
	HasPrev    bool  `json:"hasPrev"`
	HasNext    bool  `json:"hasNext"`
}

type PagedUsers struct {
	Items any  `json:"items"`
	Meta  Page `json:"meta"`
}

type LandingSummary struct {
	Users     int64 `json:"users"`
	Quizzes   int64 `json:"quizzes"`
	Questions int64 `json:"questions"`
	Attempts  int64 `json:"attempts"`
}

type QuizPopularity struct {
	QuizID   uint   `json:"quizId"`
	Title    string `json:"title"`
	Attempts int64  `json:"attempts"`
}

type Dashboard struct {
	TotalUsers          int64            `json:"totalUsers"`
	UsersByStatus       map[string]int64 `json:"usersByStatus"`
	NewUsersLast30Days  int64            `json:"newUsersLast30Days"`
	ActiveLast7Days     int64            `json:"activeLast7Days"`
	TotalQuizzes        int64            `json:"totalQuizzes"`
	PublishedQuizzes    int64            `json:"publishedQuizzes"`
	TotalAttempts       int64            `json:"totalAttempts"`
	AverageScorePercent float64          `json:"averageScorePercent"`
	TopQuizzes          []QuizPopularity `json:"topQuizzes"`
}
