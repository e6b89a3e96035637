package store

// Summary is the analytics rollup served by the admin panel dashboard.
type Summary struct {
	Users           int `json:"users"`
	Bots            int `json:"bots"`
	Credentials     int `json:"credentials"`
	Organizations   int `json:"organizations"`
	QAItems         int `json:"qa_items"`
	Conversations   int `json:"conversations"`
	OpenUnanswered  int `json:"open_unanswered"`
	FilesReady      int `json:"files_ready"`
	FilesProcessing int `json:"files_processing"`
}

func (s *Store) Summarize() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := Summary{
		Users:         len(s.users),
		Bots:          len(s.bots),
		Credentials:   len(s.vault),
		Organizations: len(s.orgs),
	}
	for _, b := range s.bots {
		sum.QAItems += len(b.QADatabase)
		sum.Conversations += len(b.Conversations)
		for _, q := range b.Unanswered {
			if !q.Resolved {
				sum.OpenUnanswered++
			}
		}
		for _, f := range b.Files {
			switch f.Status {
			case FileReady:
				sum.FilesReady++
			case FileProcessingUpload, FilePendingRAG, FileProcessingRAG:
				sum.FilesProcessing++
			}
		}
	}
	return sum
}
