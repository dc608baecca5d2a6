package structure

import "github.com/kirillkom/regulation-rag/internal/core/domain"

func samplePages() []domain.Page {
	return []domain.Page{
		{Number: 1, Text: `REGULATION (EU) 2016/679 OF THE EUROPEAN PARLIAMENT AND OF THE COUNCIL
on the protection of natural persons
Whereas:
(1) The protection of natural persons in relation to the processing of personal data
is a fundamental right.
(2) The principles of the protection should respect
their fundamental rights.`},
		{Number: 2, Text: `HAVE ADOPTED THIS REGULATION:
CHAPTER I
General provisions
Article 1
Subject-matter and objectives
1. This Regulation lays down rules relating to the protection of natural persons.
2. This Regulation protects fundamental rights
and freedoms of natural persons.`},
		{Number: 3, Text: `CHAPTER II
Principles
Article 6
Lawfulness of processing
1. Processing shall be lawful only if at least one of the following applies:
(a) the data subject has given consent;
(b) processing is necessary for the performance of a contract
to which the data subject is party;
2. Member States may maintain more specific provisions.
Article 7
Conditions for consent
1. Where processing is based on consent, the controller shall demonstrate consent.`},
		{Number: 4, Text: `CHAPTER IV
Controller and processor
Section 1
General obligations
Article 24
Responsibility of the controller
1. The controller shall implement appropriate measures.
Article 25
Data protection by design and by default
1. The controller shall implement data-protection principles.
Section 2
Security of personal data
Article 32
Security of processing
1. The controller and the processor shall ensure security.`},
	}
}
